package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads snapshot files from a remote artifact store.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a fetcher whose HTTP transport retries transient
// failures with backoff.
func NewFetcher(timeout time.Duration) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 20 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	cli := resty.NewWithClient(rc.StandardClient())
	return &Fetcher{client: cli}
}

// Fetch downloads the snapshot at url into destPath and loads it.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) (*Snapshot, error) {
	log.Info().Str("url", url).Str("dest", destPath).Msg("fetching snapshot")

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("dataset: fetch snapshot: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("dataset: fetch snapshot: bad status %d", resp.StatusCode())
	}

	if err := writeFileAtomic(destPath, resp.Body()); err != nil {
		return nil, err
	}
	return Load(destPath)
}
