package main

import (
	"math"
	"testing"

	"github.com/volquant/volsurf/models"
)

// The Greeks default to a zero risk-free rate; crypto options have no
// funding leg in this workflow.
func TestBuildDefaults(t *testing.T) {
	if defaultRiskFreeRate != 0 {
		t.Errorf("default risk-free rate should be 0, got %v", defaultRiskFreeRate)
	}
	if defaultCurrency != "BTC" {
		t.Errorf("default currency should be BTC, got %q", defaultCurrency)
	}
}

func TestMeanAbsIVDiff(t *testing.T) {
	mk := func(vals [2][2]float64) *models.Surface {
		s := models.NewSurface(2, 2)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				s.IV[i][j] = vals[i][j]
			}
		}
		return s
	}

	t.Run("AveragesOverlappingCells", func(t *testing.T) {
		s1 := mk([2][2]float64{{0.5, 0.6}, {0.7, math.NaN()}})
		s2 := mk([2][2]float64{{0.6, 0.6}, {math.NaN(), 0.8}})
		// Only (0,0) and (0,1) are defined in both.
		got := meanAbsIVDiff(s1, s2)
		if math.Abs(got-0.05) > 1e-12 {
			t.Errorf("expected mean |diff| 0.05, got %v", got)
		}
	})

	t.Run("MismatchedShapesNotComparable", func(t *testing.T) {
		s1 := mk([2][2]float64{{0.5, 0.6}, {0.7, 0.8}})
		s2 := models.NewSurface(3, 3)
		if !math.IsNaN(meanAbsIVDiff(s1, s2)) {
			t.Errorf("different grid shapes should yield NaN")
		}
		if !math.IsNaN(meanAbsIVDiff(nil, s1)) {
			t.Errorf("nil surface should yield NaN")
		}
	})

	t.Run("NoOverlapUndefined", func(t *testing.T) {
		s1 := mk([2][2]float64{{math.NaN(), math.NaN()}, {0.7, 0.8}})
		s2 := mk([2][2]float64{{0.6, 0.6}, {math.NaN(), math.NaN()}})
		if !math.IsNaN(meanAbsIVDiff(s1, s2)) {
			t.Errorf("no overlapping defined cells should yield NaN")
		}
	})
}
