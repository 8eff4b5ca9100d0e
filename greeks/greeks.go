// Package greeks derives per-option Black-Scholes Greeks from a
// smoothed IV surface instead of raw per-option quotes, which are noisy
// and can violate no-arbitrage relationships.
package greeks

import (
	"fmt"
	"math"
	"sort"

	"github.com/volquant/volsurf/models"
)

// minTTEYears guards the sqrt(T) denominators: options expiring within
// the hour get no Greeks.
const minTTEYears = 1.0 / 24.0 / 365.0

// ComputeFromSurface reads each option's (log-moneyness, tte)
// coordinate off the surface through a bilinear interpolator and
// computes the five Black-Scholes Greeks with the smoothed IV. The
// query is clamped to the surface's coordinate extent; where the
// surface has no value the option's own mark IV is used instead.
// Quotes are not mutated: results come back as a parallel annotated
// set.
func ComputeFromSurface(quotes []models.OptionQuote, surf *models.Surface, underlyingPrice, riskFreeRate float64) ([]models.AnnotatedQuote, error) {
	if surf == nil {
		return nil, fmt.Errorf("greeks: nil surface")
	}
	if err := surf.Validate(); err != nil {
		return nil, fmt.Errorf("greeks: %w", err)
	}
	if underlyingPrice <= 0 {
		return nil, fmt.Errorf("greeks: non-positive underlying price %.4f", underlyingPrice)
	}

	grid, err := resampleSurface(surf)
	if err != nil {
		return nil, fmt.Errorf("greeks: %w", err)
	}

	out := make([]models.AnnotatedQuote, len(quotes))
	for i, q := range quotes {
		k := math.Log(q.Strike / underlyingPrice)
		smoothed := grid.interpolate(k, q.TTEYears)
		if math.IsNaN(smoothed) {
			smoothed = q.MarkIV
		}

		res := models.GreeksResult{
			SmoothedIV: smoothed,
			Delta:      math.NaN(),
			Gamma:      math.NaN(),
			Vega:       math.NaN(),
			Theta:      math.NaN(),
			Rho:        math.NaN(),
		}
		if q.TTEYears > minTTEYears && smoothed > 0 {
			s, strike, t := underlyingPrice, q.Strike, q.TTEYears
			isCall := q.OptionType == models.Call
			res.Delta = bsDelta(s, strike, t, riskFreeRate, smoothed, isCall)
			res.Gamma = bsGamma(s, strike, t, riskFreeRate, smoothed)
			res.Vega = bsVega(s, strike, t, riskFreeRate, smoothed)
			res.Theta = bsTheta(s, strike, t, riskFreeRate, smoothed, isCall)
			res.Rho = bsRho(s, strike, t, riskFreeRate, smoothed, isCall)
		}

		out[i] = models.AnnotatedQuote{OptionQuote: q, BS: res}
	}

	return out, nil
}

// surfaceGrid is a surface resampled onto the unique sorted coordinate
// values of its meshes, ready for bilinear interpolation.
type surfaceGrid struct {
	ks []float64
	ts []float64
	iv [][]float64 // [t][k], NaN where undefined
}

// resampleSurface collapses duplicate mesh coordinates onto a regular
// grid. A grid cell takes the average of the defined mesh values at its
// (k, t) crossing; meshgrid-style surfaces have exactly one value per
// crossing so this is normally an identity reshape.
func resampleSurface(surf *models.Surface) (*surfaceGrid, error) {
	ks := uniqueSorted(surf.LogMoneyness)
	ts := uniqueSorted(surf.TTE)
	if len(ks) < 1 || len(ts) < 1 {
		return nil, fmt.Errorf("surface has no coordinates")
	}

	kIdx := make(map[float64]int, len(ks))
	for i, k := range ks {
		kIdx[k] = i
	}
	tIdx := make(map[float64]int, len(ts))
	for i, t := range ts {
		tIdx[t] = i
	}

	sums := make([][]float64, len(ts))
	counts := make([][]int, len(ts))
	for i := range sums {
		sums[i] = make([]float64, len(ks))
		counts[i] = make([]int, len(ks))
	}
	for r := 0; r < surf.Rows; r++ {
		for c := 0; c < surf.Cols; c++ {
			v := surf.IV[r][c]
			if math.IsNaN(v) {
				continue
			}
			ti := tIdx[surf.TTE[r][c]]
			ki := kIdx[surf.LogMoneyness[r][c]]
			sums[ti][ki] += v
			counts[ti][ki]++
		}
	}

	iv := make([][]float64, len(ts))
	for i := range iv {
		iv[i] = make([]float64, len(ks))
		for j := range iv[i] {
			if counts[i][j] == 0 {
				iv[i][j] = math.NaN()
				continue
			}
			iv[i][j] = sums[i][j] / float64(counts[i][j])
		}
	}

	return &surfaceGrid{ks: ks, ts: ts, iv: iv}, nil
}

// interpolate bilinearly reads the grid at (k, t), clamping the query
// to the grid's extent. NaN corners make the result NaN.
func (g *surfaceGrid) interpolate(k, t float64) float64 {
	k = clamp(k, g.ks[0], g.ks[len(g.ks)-1])
	t = clamp(t, g.ts[0], g.ts[len(g.ts)-1])

	ki, kw := locate(g.ks, k)
	ti, tw := locate(g.ts, t)

	v00 := g.iv[ti][ki]
	v01 := g.iv[ti][min(ki+1, len(g.ks)-1)]
	v10 := g.iv[min(ti+1, len(g.ts)-1)][ki]
	v11 := g.iv[min(ti+1, len(g.ts)-1)][min(ki+1, len(g.ks)-1)]

	return (1-tw)*(1-kw)*v00 + (1-tw)*kw*v01 + tw*(1-kw)*v10 + tw*kw*v11
}

// locate finds the lower bracketing index of x in the sorted axis and
// the interpolation weight toward the next node.
func locate(axis []float64, x float64) (int, float64) {
	n := len(axis)
	if n == 1 || x <= axis[0] {
		return 0, 0
	}
	if x >= axis[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(axis, x)
	if axis[i] == x {
		return i, 0
	}
	i--
	return i, (x - axis[i]) / (axis[i+1] - axis[i])
}

func uniqueSorted(mesh [][]float64) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, row := range mesh {
		for _, v := range row {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
