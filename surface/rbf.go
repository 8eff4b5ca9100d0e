package surface

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/volquant/volsurf/models"
)

// RBFBuilder fits a thin-plate-spline radial basis interpolant over the
// whole quote scatter. The interpolant is global and smooth and is
// evaluated at every mesh cell, including outside the convex hull of
// the inputs: unlike the grid builder, an RBF surface has no holes.
// Extrapolated values follow the kernel with no explicit bound.
type RBFBuilder struct {
	GridSize int
}

func (b *RBFBuilder) Build(quotes []models.OptionQuote) (*models.Surface, error) {
	return BuildRBFSurface(quotes, b.GridSize)
}

type rbfInterpolant struct {
	pk, pt  []float64 // node coordinates
	weights []float64 // len(pk) kernel weights + 3 polynomial terms
}

// BuildRBFSurface solves the thin-plate-spline system over the scatter
// and evaluates it on a regular GridSize x GridSize mesh spanning the
// observed coordinate range.
func BuildRBFSurface(quotes []models.OptionQuote, gridSize int) (*models.Surface, error) {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("rbf surface: %w", ErrNoQuotes)
	}

	rbf, err := fitThinPlateSpline(quotes)
	if err != nil {
		return nil, fmt.Errorf("rbf surface: %w", err)
	}

	kMin, kMax, tMin, tMax := coordBounds(quotes)
	kGrid := linspace(kMin, kMax, gridSize)
	tGrid := linspace(tMin, tMax, gridSize)

	surf := models.NewSurface(gridSize, gridSize)
	for i, t := range tGrid {
		for j, k := range kGrid {
			surf.LogMoneyness[i][j] = k
			surf.TTE[i][j] = t
			surf.IV[i][j] = rbf.eval(k, t)
		}
	}

	return surf, nil
}

// fitThinPlateSpline solves the augmented interpolation system
//
//	| A  P | |w|   |v|
//	| P' 0 | |c| = |0|
//
// where A_ij = phi(||p_i - p_j||) with phi(r) = r^2 log r and P carries
// the affine terms (1, k, t). Duplicate coordinates collapse to their
// average value so the system stays non-singular.
func fitThinPlateSpline(quotes []models.OptionQuote) (*rbfInterpolant, error) {
	pk, pt, v := dedupePoints(quotes)
	n := len(pk)
	if n < 3 {
		return nil, fmt.Errorf("%w: need at least 3 distinct points, have %d", ErrInsufficientQuotes, n)
	}

	dim := n + 3
	a := mat.NewDense(dim, dim, nil)
	b := mat.NewVecDense(dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, thinPlateKernel(math.Hypot(pk[i]-pk[j], pt[i]-pt[j])))
		}
		a.Set(i, n, 1)
		a.Set(i, n+1, pk[i])
		a.Set(i, n+2, pt[i])
		a.Set(n, i, 1)
		a.Set(n+1, i, pk[i])
		a.Set(n+2, i, pt[i])
		b.SetVec(i, v[i])
	}

	var w mat.VecDense
	if err := w.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("thin plate spline system is singular: %v", err)
	}

	return &rbfInterpolant{pk: pk, pt: pt, weights: w.RawVector().Data}, nil
}

func (r *rbfInterpolant) eval(k, t float64) float64 {
	n := len(r.pk)
	out := r.weights[n] + r.weights[n+1]*k + r.weights[n+2]*t
	for i := 0; i < n; i++ {
		out += r.weights[i] * thinPlateKernel(math.Hypot(k-r.pk[i], t-r.pt[i]))
	}
	return out
}

func thinPlateKernel(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// dedupePoints collapses quotes sharing an exact (log-moneyness, tte)
// coordinate into a single node with the average IV.
func dedupePoints(quotes []models.OptionQuote) (pk, pt, v []float64) {
	type pos struct{ k, t float64 }
	idx := make(map[pos]int)
	counts := []int{}
	for _, q := range quotes {
		p := pos{q.LogMoneyness, q.TTEYears}
		if i, ok := idx[p]; ok {
			v[i] += q.MarkIV
			counts[i]++
			continue
		}
		idx[p] = len(pk)
		pk = append(pk, q.LogMoneyness)
		pt = append(pt, q.TTEYears)
		v = append(v, q.MarkIV)
		counts = append(counts, 1)
	}
	for i := range v {
		v[i] /= float64(counts[i])
	}

	// Deterministic node ordering regardless of map iteration.
	order := make([]int, len(pk))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if pt[order[a]] != pt[order[b]] {
			return pt[order[a]] < pt[order[b]]
		}
		return pk[order[a]] < pk[order[b]]
	})
	spk := make([]float64, len(pk))
	spt := make([]float64, len(pt))
	sv := make([]float64, len(v))
	for i, o := range order {
		spk[i], spt[i], sv[i] = pk[o], pt[o], v[o]
	}
	return spk, spt, sv
}
