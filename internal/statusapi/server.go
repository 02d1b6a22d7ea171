// Package statusapi serves run status over HTTP while adaptation runs.
package statusapi

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/openset-labs/protolabel/internal/trainer"
)

// RunController is the slice of the trainer the API needs.
type RunController interface {
	Status() trainer.Status
	RequestRefresh()
}

type Server struct {
	app  *fiber.App
	addr string
}

func NewServer(addr string, run RunController) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(run.Status())
	})
	app.Post("/refresh", func(c *fiber.Ctx) error {
		run.RequestRefresh()
		log.Info().Msg("manual pseudo-label refresh scheduled")
		return c.JSON(fiber.Map{"status": "scheduled"})
	})

	return &Server{app: app, addr: addr}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			log.Error().Err(err).Msg("status server listen failed")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
