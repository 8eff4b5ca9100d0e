// Package surface reconstructs a continuous implied-volatility surface
// over (log-moneyness, time-to-expiration) from a scatter of cleaned
// call quotes. Three interchangeable strategies are provided: regular
// grid interpolation (leaves NaN holes outside the convex hull of the
// inputs), a thin-plate-spline RBF interpolant (defined everywhere),
// and a per-expiration SVI parametric fit.
package surface

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/volquant/volsurf/models"
)

const DefaultGridSize = 50

// Method selects a surface construction strategy.
type Method int

const (
	MethodGrid Method = iota
	MethodRBF
	MethodSVI
)

func (m Method) String() string {
	switch m {
	case MethodGrid:
		return "grid"
	case MethodRBF:
		return "rbf"
	case MethodSVI:
		return "svi"
	}
	return "unknown"
}

// ParseMethod maps a configuration string to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "grid", "simple":
		return MethodGrid, nil
	case "rbf":
		return MethodRBF, nil
	case "svi":
		return MethodSVI, nil
	}
	return 0, fmt.Errorf("unknown surface method %q (want grid, rbf or svi)", s)
}

// ErrNoQuotes marks malformed input: the builder was handed an empty or
// degenerate quote set. Distinct from ErrInsufficientQuotes, which means
// valid input produced no fittable slice.
var ErrNoQuotes = errors.New("no quotes to build surface from")

// ErrInsufficientQuotes means no expiration slice had enough quotes to
// fit.
var ErrInsufficientQuotes = errors.New("no expiration slice has enough quotes")

// Builder is the common contract of the three strategies: cleaned call
// quotes in, a coordinate/IV mesh out.
type Builder interface {
	Build(quotes []models.OptionQuote) (*models.Surface, error)
}

// NewBuilder returns the builder for a method with its default
// configuration. gridSize <= 0 selects DefaultGridSize.
func NewBuilder(m Method, gridSize int) Builder {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	switch m {
	case MethodRBF:
		return &RBFBuilder{GridSize: gridSize}
	case MethodSVI:
		return &SVIBuilder{GridSize: gridSize}
	default:
		return &GridBuilder{GridSize: gridSize, Interpolation: InterpCubic}
	}
}

// expirationSlice groups the quotes of one expiration, sorted by
// log-moneyness with duplicate coordinates averaged.
type expirationSlice struct {
	tte  float64
	k    []float64 // strictly increasing log-moneyness
	iv   []float64
	kMin float64
	kMax float64
}

// groupByExpiration splits quotes into per-expiration slices sorted by
// increasing time-to-expiry. Quotes sharing an expiration and a
// log-moneyness coordinate collapse to their average IV.
func groupByExpiration(quotes []models.OptionQuote) []expirationSlice {
	byTTE := make(map[float64][]models.OptionQuote)
	for _, q := range quotes {
		byTTE[q.TTEYears] = append(byTTE[q.TTEYears], q)
	}

	slices := make([]expirationSlice, 0, len(byTTE))
	for tte, qs := range byTTE {
		sort.Slice(qs, func(i, j int) bool { return qs[i].LogMoneyness < qs[j].LogMoneyness })

		var s expirationSlice
		s.tte = tte
		for i := 0; i < len(qs); {
			j := i
			sum := 0.0
			for j < len(qs) && qs[j].LogMoneyness == qs[i].LogMoneyness {
				sum += qs[j].MarkIV
				j++
			}
			s.k = append(s.k, qs[i].LogMoneyness)
			s.iv = append(s.iv, sum/float64(j-i))
			i = j
		}
		s.kMin = s.k[0]
		s.kMax = s.k[len(s.k)-1]
		slices = append(slices, s)
	}

	sort.Slice(slices, func(i, j int) bool { return slices[i].tte < slices[j].tte })
	return slices
}

// coordBounds returns the [min,max] extent of log-moneyness and
// time-to-expiry over the quote set.
func coordBounds(quotes []models.OptionQuote) (kMin, kMax, tMin, tMax float64) {
	kMin, tMin = math.Inf(1), math.Inf(1)
	kMax, tMax = math.Inf(-1), math.Inf(-1)
	for _, q := range quotes {
		kMin = math.Min(kMin, q.LogMoneyness)
		kMax = math.Max(kMax, q.LogMoneyness)
		tMin = math.Min(tMin, q.TTEYears)
		tMax = math.Max(tMax, q.TTEYears)
	}
	return
}

// linspace returns n evenly spaced values over [lo, hi] inclusive.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
