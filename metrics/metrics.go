// Package metrics computes scalar summary statistics of a cleaned
// option quote table. Every metric that has no matching quotes is NaN,
// never an error: an empty table yields a fully populated map of NaNs.
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/volquant/volsurf/models"
)

// Tenors are the ATM IV buckets, in days.
var Tenors = []int{7, 30, 60, 90, 180}

const (
	tenorWindowDays = 5.0
	atmLow          = 0.98
	atmHigh         = 1.02

	// 25-delta proxied as ~10% OTM, restricted to the one-month bucket.
	skewPutLow   = 0.88
	skewPutHigh  = 0.92
	skewCallLow  = 1.08
	skewCallHigh = 1.12
	skewTTELow   = 25.0
	skewTTEHigh  = 35.0
)

// Calculate derives the metrics mapping from the quote table: ATM IV by
// tenor, the 25-delta skew proxy, the 30d-to-90d term-structure slope
// and global IV dispersion statistics.
func Calculate(quotes []models.OptionQuote, underlyingPrice float64) map[string]float64 {
	m := make(map[string]float64)

	for _, tenor := range Tenors {
		lo, hi := float64(tenor)-tenorWindowDays, float64(tenor)+tenorWindowDays
		var ivs []float64
		for _, q := range quotes {
			if q.TTEDays >= lo && q.TTEDays <= hi && q.Moneyness >= atmLow && q.Moneyness <= atmHigh {
				ivs = append(ivs, q.MarkIV)
			}
		}
		m[fmt.Sprintf("atm_iv_%dd", tenor)] = meanOrNaN(ivs)
	}

	var putIVs, callIVs []float64
	for _, q := range quotes {
		if q.TTEDays < skewTTELow || q.TTEDays > skewTTEHigh {
			continue
		}
		switch {
		case q.OptionType == models.Put && q.Moneyness >= skewPutLow && q.Moneyness <= skewPutHigh:
			putIVs = append(putIVs, q.MarkIV)
		case q.OptionType == models.Call && q.Moneyness >= skewCallLow && q.Moneyness <= skewCallHigh:
			callIVs = append(callIVs, q.MarkIV)
		}
	}
	if len(putIVs) > 0 && len(callIVs) > 0 {
		m["skew_25d"] = stat.Mean(putIVs, nil) - stat.Mean(callIVs, nil)
	} else {
		m["skew_25d"] = math.NaN()
	}

	if !math.IsNaN(m["atm_iv_30d"]) && !math.IsNaN(m["atm_iv_90d"]) {
		m["term_structure_slope"] = m["atm_iv_90d"] - m["atm_iv_30d"]
	} else {
		m["term_structure_slope"] = math.NaN()
	}

	all := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		all = append(all, q.MarkIV)
	}
	if len(all) == 0 {
		for _, key := range []string{"iv_mean", "iv_median", "iv_std", "iv_min", "iv_max"} {
			m[key] = math.NaN()
		}
		return m
	}
	sorted := append([]float64(nil), all...)
	sort.Float64s(sorted)

	m["iv_mean"] = stat.Mean(all, nil)
	m["iv_median"] = medianSorted(sorted)
	m["iv_std"] = stdOrNaN(all)
	m["iv_min"] = floats.Min(all)
	m["iv_max"] = floats.Max(all)
	return m
}

// medianSorted averages the two central elements of an even-sized
// sample instead of taking the lower one.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func meanOrNaN(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

func stdOrNaN(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}
