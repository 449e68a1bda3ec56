// Package scorer computes the 0–100 match score of a DPE record against a
// search request, along with the French match reasons shown to users.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Weights holds the point values and penalty curve of the scoring model.
type Weights struct {
	// Location is awarded when the record sits in the searched area.
	Location float64

	// ExactSurfaceUnits is the surface gap (m²) still counted as exact.
	ExactSurfaceUnits float64

	// Class mode.
	ClassSurface      float64    // full surface credit
	ClassSurfaceAt100 float64    // credit at 100 % surface gap
	EnergyClassSteps  [5]float64 // points for 0, 1, 2, 3, ≥4 steps
	GESClassSteps     [5]float64

	// Value mode.
	ValueSurface     float64 // full surface credit
	ValueSurfaceBand float64 // credit at 90 % gap, decaying to 0 at 100 %

	// OverflowFactor multiplies the total when the surface gap is ≥ 100 %.
	OverflowFactor float64

	// Consumption and GES difference multipliers.
	MultOneUnit  float64 // 1 unit off
	MultNineUnit float64 // 9 units off
	MultFarSlope float64 // per unit beyond 9
	MultFloor    float64
}

// DefaultWeights returns the production scoring constants. Class-mode
// components sum to 100; value mode is location plus surface.
func DefaultWeights() Weights {
	return Weights{
		Location:          10,
		ExactSurfaceUnits: 1,

		ClassSurface:      30,
		ClassSurfaceAt100: 15,
		EnergyClassSteps:  [5]float64{40, 25, 10, 5, 0},
		GESClassSteps:     [5]float64{20, 12, 6, 3, 0},

		ValueSurface:     90,
		ValueSurfaceBand: 5,

		OverflowFactor: 0.5,

		MultOneUnit:  0.75,
		MultNineUnit: 0.60,
		MultFarSlope: 0.03,
		MultFloor:    0.3,
	}
}

// ClassSum returns the maximum class-mode score.
func ClassSum(w Weights) float64 {
	return w.Location + w.ClassSurface + w.EnergyClassSteps[0] + w.GESClassSteps[0]
}

// ValidateWeights checks that a Weights value is internally consistent.
func ValidateWeights(w Weights) error {
	var errs []string

	for name, v := range map[string]float64{
		"location":             w.Location,
		"exact_surface_units":  w.ExactSurfaceUnits,
		"class_surface":        w.ClassSurface,
		"class_surface_at_100": w.ClassSurfaceAt100,
		"value_surface":        w.ValueSurface,
		"value_surface_band":   w.ValueSurfaceBand,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	if w.ClassSurfaceAt100 > w.ClassSurface {
		errs = append(errs, "class_surface_at_100 must be <= class_surface")
	}
	if w.ValueSurfaceBand > w.ValueSurface {
		errs = append(errs, "value_surface_band must be <= value_surface")
	}
	if !nonIncreasing(w.EnergyClassSteps[:]) {
		errs = append(errs, "energy class steps must be non-increasing")
	}
	if !nonIncreasing(w.GESClassSteps[:]) {
		errs = append(errs, "ges class steps must be non-increasing")
	}

	if sum := ClassSum(w); math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("class weights should sum to 100, got %.1f", sum))
	}
	if sum := w.Location + w.ValueSurface; math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("value weights should sum to 100, got %.1f", sum))
	}

	if w.OverflowFactor < 0 || w.OverflowFactor > 1 {
		errs = append(errs, "overflow_factor must be between 0 and 1")
	}
	if !(1 >= w.MultOneUnit && w.MultOneUnit >= w.MultNineUnit && w.MultNineUnit >= w.MultFloor && w.MultFloor >= 0) {
		errs = append(errs, "multipliers must satisfy 1 >= one_unit >= nine_unit >= floor >= 0")
	}
	if w.MultFarSlope < 0 {
		errs = append(errs, "far_slope must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weights validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func nonIncreasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] > v[i-1] || v[i] < 0 {
			return false
		}
	}
	return true
}
