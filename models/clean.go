package models

import (
	"fmt"
	"math"
	"sort"
)

const (
	DefaultMinTTEDays    = 1.0
	DefaultMoneynessLow  = 0.7
	DefaultMoneynessHigh = 1.3
	parityTolerance      = 0.05
)

// CleanQuotes filters the raw quote table down to rows the surface
// builders can use: drops missing or non-positive mark IV, near-expiry
// contracts and deep ITM/OTM strikes, and normalizes percentage-quoted
// IVs to decimals. Rows are dropped, never mutated in place.
func CleanQuotes(quotes []OptionQuote, minTTEDays, moneynessLow, moneynessHigh float64) []OptionQuote {
	fmt.Printf("\nStarting with %d options\n", len(quotes))

	out := make([]OptionQuote, 0, len(quotes))
	for _, q := range quotes {
		if math.IsNaN(q.MarkIV) {
			continue
		}
		out = append(out, q)
	}
	fmt.Printf("After removing missing IV: %d\n", len(out))

	out = filterQuotes(out, func(q OptionQuote) bool { return q.MarkIV > 0 })
	fmt.Printf("After removing zero/negative IV: %d\n", len(out))

	out = filterQuotes(out, func(q OptionQuote) bool { return q.TTEDays >= minTTEDays })
	fmt.Printf("After removing options with < %.0f days: %d\n", minTTEDays, len(out))

	out = filterQuotes(out, func(q OptionQuote) bool {
		return q.Moneyness >= moneynessLow && q.Moneyness <= moneynessHigh
	})
	fmt.Printf("After filtering moneyness (%.1f-%.1f): %d\n", moneynessLow, moneynessHigh, len(out))

	// Deribit quotes IV in percent; anything above 10 cannot be a
	// decimal annualized vol.
	maxIV := 0.0
	for _, q := range out {
		if q.MarkIV > maxIV {
			maxIV = q.MarkIV
		}
	}
	if maxIV > 10 {
		for i := range out {
			out[i].MarkIV /= 100
			out[i].BidIV /= 100
			out[i].AskIV /= 100
		}
	}

	return out
}

func filterQuotes(quotes []OptionQuote, keep func(OptionQuote) bool) []OptionQuote {
	out := quotes[:0:0]
	for _, q := range quotes {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}

// SeparateByType splits the table into calls and puts.
func SeparateByType(quotes []OptionQuote) (calls, puts []OptionQuote) {
	for _, q := range quotes {
		if q.OptionType == Call {
			calls = append(calls, q)
		} else if q.OptionType == Put {
			puts = append(puts, q)
		}
	}
	fmt.Printf("\nCalls: %d, Puts: %d\n", len(calls), len(puts))
	return calls, puts
}

type ParityViolation struct {
	Strike     float64
	Expiration string
	CallIV     float64
	PutIV      float64
	Diff       float64
}

// CheckCallPutParity reports strike/expiration pairs where call and put
// mark IVs disagree by more than the tolerance.
func CheckCallPutParity(calls, puts []OptionQuote) []ParityViolation {
	type key struct {
		strike float64
		exp    string
	}
	putIVs := make(map[key]float64, len(puts))
	for _, p := range puts {
		putIVs[key{p.Strike, p.Expiration.Format("2006-01-02 15:04")}] = p.MarkIV
	}

	var violations []ParityViolation
	pairs := 0
	for _, c := range calls {
		k := key{c.Strike, c.Expiration.Format("2006-01-02 15:04")}
		putIV, ok := putIVs[k]
		if !ok {
			continue
		}
		pairs++
		diff := math.Abs(c.MarkIV - putIV)
		if diff > parityTolerance {
			violations = append(violations, ParityViolation{
				Strike:     c.Strike,
				Expiration: k.exp,
				CallIV:     c.MarkIV,
				PutIV:      putIV,
				Diff:       diff,
			})
		}
	}

	sort.Slice(violations, func(i, j int) bool { return violations[i].Diff > violations[j].Diff })

	fmt.Printf("\nCall-Put Parity Check:\n")
	fmt.Printf("Total strike/expiration pairs: %d\n", pairs)
	fmt.Printf("Violations (|IV_call - IV_put| > %.2f): %d\n", parityTolerance, len(violations))
	for i, v := range violations {
		if i >= 5 {
			break
		}
		fmt.Printf("  strike %.0f exp %s call %.4f put %.4f diff %.4f\n",
			v.Strike, v.Expiration, v.CallIV, v.PutIV, v.Diff)
	}

	return violations
}

// SummarizeQuotes prints summary statistics of the cleaned table.
func SummarizeQuotes(quotes []OptionQuote) {
	fmt.Printf("\n%s\nDATA SUMMARY\n%s\n", divider, divider)
	if len(quotes) == 0 {
		fmt.Println("No options to summarize")
		return
	}

	strikes := make(map[float64]struct{})
	expirations := make(map[string]struct{})
	minTTE, maxTTE := math.Inf(1), math.Inf(-1)
	minStrike, maxStrike := math.Inf(1), math.Inf(-1)
	minIV, maxIV := math.Inf(1), math.Inf(-1)
	sumTTE, sumIV := 0.0, 0.0
	for _, q := range quotes {
		strikes[q.Strike] = struct{}{}
		expirations[q.Expiration.Format("2006-01-02")] = struct{}{}
		minTTE = math.Min(minTTE, q.TTEDays)
		maxTTE = math.Max(maxTTE, q.TTEDays)
		minStrike = math.Min(minStrike, q.Strike)
		maxStrike = math.Max(maxStrike, q.Strike)
		minIV = math.Min(minIV, q.MarkIV)
		maxIV = math.Max(maxIV, q.MarkIV)
		sumTTE += q.TTEDays
		sumIV += q.MarkIV
	}
	n := float64(len(quotes))

	fmt.Printf("\nTotal options: %d\n", len(quotes))
	fmt.Printf("Unique strikes: %d\n", len(strikes))
	fmt.Printf("Unique expirations: %d\n", len(expirations))
	fmt.Printf("\nTime to expiration:\n  Min: %.1f days\n  Max: %.1f days\n  Mean: %.1f days\n",
		minTTE, maxTTE, sumTTE/n)
	fmt.Printf("\nStrike range:\n  Min: $%.0f\n  Max: $%.0f\n  Spot: $%.0f\n",
		minStrike, maxStrike, quotes[0].UnderlyingPrice)
	fmt.Printf("\nImplied Volatility:\n  Min: %.1f%%\n  Max: %.1f%%\n  Mean: %.1f%%\n",
		minIV*100, maxIV*100, sumIV/n*100)
	fmt.Printf("\n%s\n", divider)
}

var divider = "============================================================"
