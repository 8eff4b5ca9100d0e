package surface

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/volquant/volsurf/models"
)

// minSVIQuotes is the smallest slice worth fitting five parameters to.
const minSVIQuotes = 5

// SVIBuilder fits the SVI total-variance parametrization independently
// to each expiration slice and evaluates the fitted curves on a common
// log-moneyness grid. Expirations with fewer than five quotes are
// skipped, so the output mesh has one row per successfully fitted
// expiration and callers must tolerate a variable row count. Slices are
// fit independently, which permits calendar-spread arbitrage between
// adjacent expirations; nothing here repairs that.
type SVIBuilder struct {
	GridSize int
	Workers  int // fit concurrency, default NumCPU

	mu     sync.Mutex
	slices []models.SVISlice
}

func (b *SVIBuilder) Build(quotes []models.OptionQuote) (*models.Surface, error) {
	surf, slices, err := BuildSVISurface(quotes, b.GridSize, b.Workers)
	b.mu.Lock()
	b.slices = slices
	b.mu.Unlock()
	return surf, err
}

// Slices returns the per-expiration fit results of the last Build.
func (b *SVIBuilder) Slices() []models.SVISlice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slices
}

// BuildSVISurface fits one SVI parameter set per expiration slice with
// at least minSVIQuotes quotes and recovers IV on the mesh as
// sqrt(w(k)/T). Slice fits are independent and run on a small worker
// pool.
func BuildSVISurface(quotes []models.OptionQuote, gridSize, workers int) (*models.Surface, []models.SVISlice, error) {
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(quotes) == 0 {
		return nil, nil, fmt.Errorf("svi surface: %w", ErrNoQuotes)
	}

	all := groupByExpiration(quotes)
	var fittable []expirationSlice
	for _, s := range all {
		if len(s.k) >= minSVIQuotes {
			fittable = append(fittable, s)
		}
	}
	if len(fittable) == 0 {
		return nil, nil, fmt.Errorf("svi surface: %w (min %d per expiration)", ErrInsufficientQuotes, minSVIQuotes)
	}

	fmt.Printf("\nFitting SVI model to %d of %d expiration slices...\n", len(fittable), len(all))

	fits := make([]models.SVISlice, len(fittable))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fits[i] = fitSVISlice(fittable[i])
			}
		}()
	}
	for i := range fittable {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.Slice(fits, func(i, j int) bool { return fits[i].TTEYears < fits[j].TTEYears })
	fmt.Printf("Successfully fitted SVI to %d expiration slices\n", len(fits))

	kMin, kMax, _, _ := coordBounds(quotes)
	kGrid := linspace(kMin, kMax, gridSize)

	surf := models.NewSurface(len(fits), gridSize)
	for i, fit := range fits {
		for j, k := range kGrid {
			surf.LogMoneyness[i][j] = k
			surf.TTE[i][j] = fit.TTEYears
			surf.IV[i][j] = math.Sqrt(fit.Params.TotalVariance(k) / fit.TTEYears)
		}
	}

	return surf, fits, nil
}

// fitSVISlice least-squares fits w(k) = a + b*(rho*(k-m) +
// sqrt((k-m)^2+sigma^2)) to the slice's observed total variance
// iv^2 * T. Box bounds (a>=0, b>=0, |rho|<=1, sigma>=0.01) are enforced
// by projecting the parameter vector inside the objective; the
// optimizer's best-effort result is kept even when it reports
// non-convergence.
func fitSVISlice(s expirationSlice) models.SVISlice {
	totalVar := make([]float64, len(s.iv))
	mean := 0.0
	for i, iv := range s.iv {
		totalVar[i] = iv * iv * s.tte
		mean += totalVar[i]
	}
	mean /= float64(len(totalVar))

	objective := func(x []float64) float64 {
		p := projectSVI(x)
		sum := 0.0
		for i, k := range s.k {
			r := p.TotalVariance(k) - totalVar[i]
			sum += r * r
		}
		return sum
	}

	x0 := []float64{mean, 0.1, 0, 0, 0.1}
	problem := optimize.Problem{
		Func: objective,
		// LBFGS requires a gradient; the objective has no closed form
		// worth maintaining, so differentiate numerically.
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}

	x := x0
	result, err := optimize.Minimize(problem, x0, nil, &optimize.LBFGS{})
	if result != nil && len(result.X) == 5 {
		x = result.X
	} else if err != nil {
		fmt.Printf("SVI fit for tte=%.4f failed (%s), keeping initial guess\n", s.tte, err)
	}

	params := projectSVI(x)
	return models.SVISlice{
		TTEYears:  s.tte,
		Params:    params,
		NumQuotes: len(s.k),
		Residual:  objective(x),
	}
}

func projectSVI(x []float64) models.SVIParams {
	return models.SVIParams{
		A:     math.Max(0, x[0]),
		B:     math.Max(0, x[1]),
		Rho:   clampFloat(x[2], -1, 1),
		M:     x[3],
		Sigma: math.Max(0.01, x[4]),
	}
}
