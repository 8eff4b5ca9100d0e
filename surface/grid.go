package surface

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/volquant/volsurf/models"
)

// GridInterpolation is the interpolation order of the grid builder.
type GridInterpolation int

const (
	InterpNearest GridInterpolation = iota
	InterpLinear
	InterpCubic
)

// GridBuilder interpolates the quote scatter onto a regular GridSize x
// GridSize mesh spanning the observed coordinate range. Mesh cells
// outside the convex hull of the input points stay NaN: the grid
// builder never extrapolates. Cubic order can overshoot near sparse
// regions; that is a property of the interpolant, not corrected here.
type GridBuilder struct {
	GridSize      int
	Interpolation GridInterpolation
}

func (b *GridBuilder) Build(quotes []models.OptionQuote) (*models.Surface, error) {
	return BuildGridSurface(quotes, b.GridSize, b.Interpolation)
}

// BuildGridSurface interpolates mark IV over a regular mesh. The
// scatter is organized into expiration slices: IV is interpolated along
// log-moneyness within the two slices bracketing each mesh row's
// time-to-expiry and blended linearly between them. A cell is defined
// only when its log-moneyness lies inside the linearly interpolated
// extent of both bracketing slices, which is the convex hull of the
// slice segments.
func BuildGridSurface(quotes []models.OptionQuote, gridSize int, order GridInterpolation) (*models.Surface, error) {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("grid surface: %w", ErrNoQuotes)
	}

	kMin, kMax, tMin, tMax := coordBounds(quotes)

	all := groupByExpiration(quotes)
	slices := all[:0:0]
	for _, s := range all {
		// A slice needs two distinct strikes to interpolate along.
		if len(s.k) >= 2 {
			slices = append(slices, s)
		}
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("grid surface: %w", ErrInsufficientQuotes)
	}

	predictors := make([]interp.Predictor, len(slices))
	for i, s := range slices {
		p, err := newPredictor(order, s.k, s.iv)
		if err != nil {
			return nil, fmt.Errorf("grid surface: fitting slice tte=%.4f: %w", s.tte, err)
		}
		predictors[i] = p
	}

	kGrid := linspace(kMin, kMax, gridSize)
	tGrid := linspace(tMin, tMax, gridSize)

	surf := models.NewSurface(gridSize, gridSize)
	for i, t := range tGrid {
		lo, hi := bracketSlices(slices, t)
		for j, k := range kGrid {
			surf.LogMoneyness[i][j] = k
			surf.TTE[i][j] = t
			surf.IV[i][j] = math.NaN()
			if lo < 0 {
				continue
			}
			if lo == hi {
				s := slices[lo]
				if k >= s.kMin && k <= s.kMax {
					surf.IV[i][j] = predictors[lo].Predict(k)
				}
				continue
			}
			s0, s1 := slices[lo], slices[hi]
			w := (t - s0.tte) / (s1.tte - s0.tte)
			kl := s0.kMin + w*(s1.kMin-s0.kMin)
			kh := s0.kMax + w*(s1.kMax-s0.kMax)
			if k < kl || k > kh {
				continue
			}
			// Clamp to each slice's own extent before predicting so the
			// 1D interpolants are never asked to extrapolate.
			v0 := predictors[lo].Predict(clampFloat(k, s0.kMin, s0.kMax))
			v1 := predictors[hi].Predict(clampFloat(k, s1.kMin, s1.kMax))
			surf.IV[i][j] = (1-w)*v0 + w*v1
		}
	}

	return surf, nil
}

// bracketSlices finds the pair of slice indices whose expirations
// bracket t. Returns (-1,-1) when t falls outside the fitted slices.
func bracketSlices(slices []expirationSlice, t float64) (lo, hi int) {
	n := len(slices)
	if t < slices[0].tte || t > slices[n-1].tte {
		return -1, -1
	}
	hi = sort.Search(n, func(i int) bool { return slices[i].tte >= t })
	if slices[hi].tte == t {
		return hi, hi
	}
	return hi - 1, hi
}

func newPredictor(order GridInterpolation, xs, ys []float64) (interp.Predictor, error) {
	switch order {
	case InterpNearest:
		p := &nearestInterp{}
		return p, p.Fit(xs, ys)
	case InterpLinear:
		p := &interp.PiecewiseLinear{}
		return p, p.Fit(xs, ys)
	default:
		// Natural cubic needs at least three nodes; two-point slices
		// degenerate to linear.
		if len(xs) < 3 {
			p := &interp.PiecewiseLinear{}
			return p, p.Fit(xs, ys)
		}
		p := &interp.NaturalCubic{}
		return p, p.Fit(xs, ys)
	}
}

// nearestInterp is a nearest-neighbor 1D predictor with the same
// Fit/Predict contract as the gonum interp fitters.
type nearestInterp struct {
	xs, ys []float64
}

var _ interp.FittablePredictor = (*nearestInterp)(nil)

func (p *nearestInterp) Fit(xs, ys []float64) error {
	if len(xs) < 1 || len(xs) != len(ys) {
		return fmt.Errorf("nearest interpolator: need matching non-empty xs and ys")
	}
	p.xs = append([]float64(nil), xs...)
	p.ys = append([]float64(nil), ys...)
	return nil
}

func (p *nearestInterp) Predict(x float64) float64 {
	i := sort.SearchFloat64s(p.xs, x)
	if i == 0 {
		return p.ys[0]
	}
	if i == len(p.xs) {
		return p.ys[len(p.ys)-1]
	}
	if x-p.xs[i-1] <= p.xs[i]-x {
		return p.ys[i-1]
	}
	return p.ys[i]
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
