package surface_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/surface"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// quoteAt places a call quote directly at a (log-moneyness, tteYears)
// coordinate with the given IV.
func quoteAt(k, tteYears, iv float64) models.OptionQuote {
	spot := 100.0
	strike := spot * math.Exp(k)
	return models.OptionQuote{
		Instrument:      "TEST",
		Strike:          strike,
		Expiration:      time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		OptionType:      models.Call,
		MarkIV:          iv,
		Moneyness:       strike / spot,
		LogMoneyness:    k,
		TTEDays:         tteYears * 365.0,
		TTEYears:        tteYears,
		UnderlyingPrice: spot,
	}
}

// slice of quotes spanning ks at one expiration with constant IV
func flatSlice(tteYears, iv float64, ks ...float64) []models.OptionQuote {
	out := make([]models.OptionQuote, len(ks))
	for i, k := range ks {
		out[i] = quoteAt(k, tteYears, iv)
	}
	return out
}

func TestBuildGridSurface(t *testing.T) {
	t.Run("FlatScatterStaysFlat", func(t *testing.T) {
		var quotes []models.OptionQuote
		quotes = append(quotes, flatSlice(0.1, 0.5, -0.2, -0.1, 0, 0.1, 0.2)...)
		quotes = append(quotes, flatSlice(0.3, 0.5, -0.2, -0.1, 0, 0.1, 0.2)...)

		surf, err := surface.BuildGridSurface(quotes, 10, surface.InterpCubic)
		if err != nil {
			t.Fatalf("BuildGridSurface returned error: %v", err)
		}
		if surf.Rows != 10 || surf.Cols != 10 {
			t.Fatalf("expected 10x10 mesh, got %dx%d", surf.Rows, surf.Cols)
		}
		for i := 0; i < surf.Rows; i++ {
			for j := 0; j < surf.Cols; j++ {
				v := surf.IV[i][j]
				if math.IsNaN(v) {
					t.Fatalf("unexpected hole at (%d,%d): both slices span the full k range", i, j)
				}
				if !approxEqual(v, 0.5, 1e-9) {
					t.Errorf("cell (%d,%d): expected 0.5, got %v", i, j, v)
				}
			}
		}
	})

	t.Run("LinearBlendBetweenSlices", func(t *testing.T) {
		var quotes []models.OptionQuote
		quotes = append(quotes, flatSlice(0.1, 0.4, -0.2, 0, 0.2)...)
		quotes = append(quotes, flatSlice(0.3, 0.6, -0.2, 0, 0.2)...)

		// Grid size 3 puts the middle row exactly at t = 0.2.
		surf, err := surface.BuildGridSurface(quotes, 3, surface.InterpLinear)
		if err != nil {
			t.Fatalf("BuildGridSurface returned error: %v", err)
		}
		for j := 0; j < surf.Cols; j++ {
			if !approxEqual(surf.IV[1][j], 0.5, 1e-9) {
				t.Errorf("midpoint cell %d: expected blended IV 0.5, got %v", j, surf.IV[1][j])
			}
		}
	})

	t.Run("NaNOutsideHull", func(t *testing.T) {
		var quotes []models.OptionQuote
		quotes = append(quotes, flatSlice(0.1, 0.5, -0.1, 0, 0.1)...)
		quotes = append(quotes, flatSlice(0.3, 0.5, -0.4, -0.2, 0, 0.2, 0.4)...)

		surf, err := surface.BuildGridSurface(quotes, 5, surface.InterpLinear)
		if err != nil {
			t.Fatalf("BuildGridSurface returned error: %v", err)
		}

		// Row 0 is exactly the near expiration, whose slice only spans
		// [-0.1, 0.1]; the mesh k axis spans [-0.4, 0.4].
		if !math.IsNaN(surf.IV[0][0]) {
			t.Errorf("expected NaN outside the near slice extent, got %v", surf.IV[0][0])
		}
		if !math.IsNaN(surf.IV[0][surf.Cols-1]) {
			t.Errorf("expected NaN outside the near slice extent, got %v", surf.IV[0][surf.Cols-1])
		}
		if math.IsNaN(surf.IV[0][2]) {
			t.Errorf("expected defined IV at k=0 on the near slice")
		}
		// The far expiration spans the whole axis.
		last := surf.Rows - 1
		for j := 0; j < surf.Cols; j++ {
			if math.IsNaN(surf.IV[last][j]) {
				t.Errorf("expected defined IV across the far slice, hole at col %d", j)
			}
		}
	})

	t.Run("RecoverValuesAtNodes", func(t *testing.T) {
		// IV varies linearly in k and t; linear interpolation must
		// reproduce it exactly everywhere on the mesh.
		f := func(k, tte float64) float64 { return 0.5 + 0.2*k + 0.1*tte }
		var quotes []models.OptionQuote
		for _, tte := range []float64{0.1, 0.2, 0.3} {
			for _, k := range []float64{-0.2, -0.1, 0, 0.1, 0.2} {
				quotes = append(quotes, quoteAt(k, tte, f(k, tte)))
			}
		}

		surf, err := surface.BuildGridSurface(quotes, 9, surface.InterpLinear)
		if err != nil {
			t.Fatalf("BuildGridSurface returned error: %v", err)
		}
		for i := 0; i < surf.Rows; i++ {
			for j := 0; j < surf.Cols; j++ {
				want := f(surf.LogMoneyness[i][j], surf.TTE[i][j])
				if !approxEqual(surf.IV[i][j], want, 1e-9) {
					t.Errorf("cell (%d,%d): expected %v, got %v", i, j, want, surf.IV[i][j])
				}
			}
		}
	})

	t.Run("NearestInterpolation", func(t *testing.T) {
		var quotes []models.OptionQuote
		quotes = append(quotes, quoteAt(-0.2, 0.1, 0.4), quoteAt(0.2, 0.1, 0.6))
		quotes = append(quotes, quoteAt(-0.2, 0.3, 0.4), quoteAt(0.2, 0.3, 0.6))

		surf, err := surface.BuildGridSurface(quotes, 5, surface.InterpNearest)
		if err != nil {
			t.Fatalf("BuildGridSurface returned error: %v", err)
		}
		// k grid: -0.2, -0.1, 0, 0.1, 0.2. The -0.1 column is nearest
		// to the -0.2 node, the 0.1 column nearest to 0.2.
		if !approxEqual(surf.IV[0][1], 0.4, 1e-9) {
			t.Errorf("expected nearest IV 0.4, got %v", surf.IV[0][1])
		}
		if !approxEqual(surf.IV[0][3], 0.6, 1e-9) {
			t.Errorf("expected nearest IV 0.6, got %v", surf.IV[0][3])
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := surface.BuildGridSurface(nil, 10, surface.InterpCubic)
		if !errors.Is(err, surface.ErrNoQuotes) {
			t.Errorf("expected ErrNoQuotes, got %v", err)
		}
	})

	t.Run("SingleQuoteSlicesUnusable", func(t *testing.T) {
		quotes := []models.OptionQuote{
			quoteAt(0, 0.1, 0.5),
			quoteAt(0, 0.3, 0.5),
		}
		_, err := surface.BuildGridSurface(quotes, 10, surface.InterpCubic)
		if !errors.Is(err, surface.ErrInsufficientQuotes) {
			t.Errorf("expected ErrInsufficientQuotes, got %v", err)
		}
	})
}

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in      string
		want    surface.Method
		wantErr bool
	}{
		{"grid", surface.MethodGrid, false},
		{"simple", surface.MethodGrid, false},
		{"rbf", surface.MethodRBF, false},
		{"svi", surface.MethodSVI, false},
		{"cubic", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := surface.ParseMethod(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseMethod(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMethod(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMethod(%q): expected %v, got %v", c.in, c.want, got)
		}
	}
}
