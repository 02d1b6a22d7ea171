package trainer

import "math"

// schedulerPower is the exponent of the polynomial learning-rate decay.
const schedulerPower = 0.75

// decayLR implements the standard adaptation schedule:
//
//	lr = lr0 * (1 + 10 * progress)^-0.75
//
// where progress runs from 0 to 1 over the whole training budget.
func decayLR(lr0 float64, step, totalSteps int) float64 {
	if totalSteps <= 0 {
		return lr0
	}
	progress := float64(step) / float64(totalSteps)
	return lr0 * math.Pow(1+10*progress, -schedulerPower)
}
