package surface_test

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/volquant/volsurf/metrics"
	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/surface"
)

func TestBuildRBFSurface(t *testing.T) {
	t.Run("ReproducesNodeValues", func(t *testing.T) {
		// Nodes on a 5x3 lattice; gridSize 5 makes the mesh k axis land
		// exactly on the node coordinates and rows 0, 2, 4 land on the
		// node expirations. A thin plate spline interpolates its nodes.
		f := func(k, tte float64) float64 { return 0.5 + 0.3*k*k + 0.2*tte }
		ks := []float64{-0.2, -0.1, 0, 0.1, 0.2}
		ts := []float64{0.1, 0.2, 0.3}

		var quotes []models.OptionQuote
		for _, tte := range ts {
			for _, k := range ks {
				quotes = append(quotes, quoteAt(k, tte, f(k, tte)))
			}
		}

		surf, err := surface.BuildRBFSurface(quotes, 5)
		if err != nil {
			t.Fatalf("BuildRBFSurface returned error: %v", err)
		}
		for _, row := range []int{0, 2, 4} {
			for j := 0; j < surf.Cols; j++ {
				want := f(surf.LogMoneyness[row][j], surf.TTE[row][j])
				if !approxEqual(surf.IV[row][j], want, 1e-6) {
					t.Errorf("node cell (%d,%d): expected %v, got %v", row, j, want, surf.IV[row][j])
				}
			}
		}
	})

	t.Run("DefinedEverywhere", func(t *testing.T) {
		// Same sparse scatter that leaves holes in the grid builder.
		var quotes []models.OptionQuote
		quotes = append(quotes, flatSlice(0.1, 0.5, -0.1, 0, 0.1)...)
		quotes = append(quotes, flatSlice(0.3, 0.5, -0.4, -0.2, 0, 0.2, 0.4)...)

		surf, err := surface.BuildRBFSurface(quotes, 10)
		if err != nil {
			t.Fatalf("BuildRBFSurface returned error: %v", err)
		}
		for i := 0; i < surf.Rows; i++ {
			for j := 0; j < surf.Cols; j++ {
				if math.IsNaN(surf.IV[i][j]) {
					t.Fatalf("RBF surface has a hole at (%d,%d)", i, j)
				}
			}
		}
	})

	t.Run("DuplicateCoordinatesAveraged", func(t *testing.T) {
		quotes := []models.OptionQuote{
			quoteAt(-0.1, 0.1, 0.4),
			quoteAt(0.1, 0.1, 0.6),
			quoteAt(0, 0.3, 0.4),
			quoteAt(0, 0.3, 0.6), // duplicate coordinate, averages to 0.5
		}
		surf, err := surface.BuildRBFSurface(quotes, 3)
		if err != nil {
			t.Fatalf("BuildRBFSurface returned error: %v", err)
		}
		// Mesh corner row 2 / col 1 sits exactly on the duplicated node.
		if !approxEqual(surf.IV[2][1], 0.5, 1e-6) {
			t.Errorf("expected averaged node value 0.5, got %v", surf.IV[2][1])
		}
	})

	t.Run("TooFewDistinctPoints", func(t *testing.T) {
		quotes := []models.OptionQuote{
			quoteAt(0, 0.1, 0.5),
			quoteAt(0, 0.1, 0.5),
			quoteAt(0.1, 0.1, 0.5),
		}
		_, err := surface.BuildRBFSurface(quotes, 10)
		if !errors.Is(err, surface.ErrInsufficientQuotes) {
			t.Errorf("expected ErrInsufficientQuotes, got %v", err)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := surface.BuildRBFSurface(nil, 10)
		if !errors.Is(err, surface.ErrNoQuotes) {
			t.Errorf("expected ErrNoQuotes, got %v", err)
		}
	})
}

// TestRBFSurfaceFromNoisyQuotes runs the builder over a realistic-sized
// synthetic chain and checks the reconstruction stays close to the true
// flat vol despite quote noise.
func TestRBFSurfaceFromNoisyQuotes(t *testing.T) {
	const trueIV = 0.60

	noise := distuv.Normal{Mu: 0, Sigma: 0.01, Src: rand.NewSource(42)}

	var quotes []models.OptionQuote
	for _, tteDays := range []float64{7, 30, 60, 90} {
		for i := 0; i < 50; i++ {
			k := -0.2 + 0.4*float64(i)/49.0 // moneyness ~ [0.82, 1.22]
			quotes = append(quotes, quoteAt(k, tteDays/365.0, trueIV+noise.Rand()))
		}
	}

	surf, err := surface.BuildRBFSurface(quotes, surface.DefaultGridSize)
	if err != nil {
		t.Fatalf("BuildRBFSurface returned error: %v", err)
	}
	if err := surf.Validate(); err != nil {
		t.Fatalf("surface invalid: %v", err)
	}

	for i := 0; i < surf.Rows; i++ {
		for j := 0; j < surf.Cols; j++ {
			if math.Abs(surf.IV[i][j]-trueIV) > 0.03 {
				t.Fatalf("cell (%d,%d): IV %v strays more than 0.03 from true %v",
					i, j, surf.IV[i][j], trueIV)
			}
		}
	}

	m := metrics.Calculate(quotes, 100)
	if math.Abs(m["iv_mean"]-trueIV) > 0.01 {
		t.Errorf("iv_mean: expected within 0.01 of %v, got %v", trueIV, m["iv_mean"])
	}
}
