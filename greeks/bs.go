package greeks

import "math"

// Closed-form Black-Scholes sensitivities. Vega is per 1-point vol
// change, theta per calendar day, rho per 1-point rate change.

func d1d2(s, k, t, r, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

// BlackScholesPrice returns the undiscounted-dividend Black-Scholes
// price of a European option.
func BlackScholesPrice(s, k, t, r, sigma float64, isCall bool) float64 {
	d1, d2 := d1d2(s, k, t, r, sigma)
	if isCall {
		return s*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
	}
	return k*math.Exp(-r*t)*normCDF(-d2) - s*normCDF(-d1)
}

func bsDelta(s, k, t, r, sigma float64, isCall bool) float64 {
	d1, _ := d1d2(s, k, t, r, sigma)
	if isCall {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

func bsGamma(s, k, t, r, sigma float64) float64 {
	d1, _ := d1d2(s, k, t, r, sigma)
	return normPDF(d1) / (s * sigma * math.Sqrt(t))
}

func bsVega(s, k, t, r, sigma float64) float64 {
	d1, _ := d1d2(s, k, t, r, sigma)
	return s * normPDF(d1) * math.Sqrt(t) / 100
}

func bsTheta(s, k, t, r, sigma float64, isCall bool) float64 {
	d1, d2 := d1d2(s, k, t, r, sigma)
	theta := -(s * normPDF(d1) * sigma) / (2 * math.Sqrt(t))
	if isCall {
		theta -= r * k * math.Exp(-r*t) * normCDF(d2)
	} else {
		theta += r * k * math.Exp(-r*t) * normCDF(-d2)
	}
	return theta / 365
}

func bsRho(s, k, t, r, sigma float64, isCall bool) float64 {
	_, d2 := d1d2(s, k, t, r, sigma)
	if isCall {
		return k * t * math.Exp(-r*t) * normCDF(d2) / 100
	}
	return -k * t * math.Exp(-r*t) * normCDF(-d2) / 100
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
