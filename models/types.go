package models

import "time"

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionQuote is one row of the quote table: a single option instrument
// with its exchange-quoted IVs and Greeks. Implied volatilities are
// decimal annualized after cleaning (CleanQuotes normalizes percentage
// quotes). Quotes are never mutated after cleaning; computed Greeks live
// in a separate GreeksResult attachment.
type OptionQuote struct {
	Instrument      string     `json:"instrument"`
	Strike          float64    `json:"strike"`
	Expiration      time.Time  `json:"expiration"`
	OptionType      OptionType `json:"option_type"`
	MarkIV          float64    `json:"mark_iv"`
	BidIV           float64    `json:"bid_iv"`
	AskIV           float64    `json:"ask_iv"`
	Moneyness       float64    `json:"moneyness"`
	LogMoneyness    float64    `json:"log_moneyness"`
	TTEDays         float64    `json:"tte_days"`
	TTEYears        float64    `json:"tte_years"`
	Delta           float64    `json:"delta"`
	Gamma           float64    `json:"gamma"`
	Theta           float64    `json:"theta"`
	Vega            float64    `json:"vega"`
	Rho             float64    `json:"rho"`
	Volume          float64    `json:"volume"`
	OpenInterest    float64    `json:"open_interest"`
	UnderlyingPrice float64    `json:"underlying_price"`
}

// GreeksResult holds the surface-smoothed IV and the Black-Scholes
// Greeks derived from it. Fields are NaN where undefined (expiry under
// one hour, or no IV available).
type GreeksResult struct {
	SmoothedIV float64 `json:"smoothed_iv"`
	Delta      float64 `json:"bs_delta"`
	Gamma      float64 `json:"bs_gamma"`
	Vega       float64 `json:"bs_vega"`
	Theta      float64 `json:"bs_theta"`
	Rho        float64 `json:"bs_rho"`
}

// AnnotatedQuote pairs an immutable quote with its computed Greeks.
type AnnotatedQuote struct {
	OptionQuote
	BS GreeksResult `json:"bs"`
}

// SVIParams is the 5-parameter total-variance curve for one expiration:
// w(k) = a + b*(rho*(k-m) + sqrt((k-m)^2 + sigma^2)).
type SVIParams struct {
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Rho   float64 `json:"rho"`
	M     float64 `json:"m"`
	Sigma float64 `json:"sigma"`
}

// SVISlice is the fit result for a single expiration slice.
type SVISlice struct {
	TTEYears  float64   `json:"tte_years"`
	Params    SVIParams `json:"params"`
	NumQuotes int       `json:"num_quotes"`
	Residual  float64   `json:"residual"` // sum of squared residuals at the optimum
}

// Snapshot aggregates one point-in-time surface build. Quotes may be
// nil after a reload; the surface and metrics are always present.
type Snapshot struct {
	Timestamp       time.Time
	Currency        string
	UnderlyingPrice float64
	DVOL            *float64
	Surface         *Surface
	Quotes          []AnnotatedQuote
	Metrics         map[string]float64
}
