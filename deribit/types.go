package deribit

// Wire types for the Deribit public API v2 endpoints the quote
// ingestion uses.

type IndexPriceResponse struct {
	Result struct {
		IndexPrice float64 `json:"index_price"`
	} `json:"result"`
}

type InstrumentsResponse struct {
	Result []Instrument `json:"result"`
}

type Instrument struct {
	InstrumentName      string  `json:"instrument_name"`
	Strike              float64 `json:"strike"`
	ExpirationTimestamp int64   `json:"expiration_timestamp"` // ms since epoch
	OptionType          string  `json:"option_type"`
	IsActive            bool    `json:"is_active"`
}

type TickerResponse struct {
	Result Ticker `json:"result"`
}

type Ticker struct {
	InstrumentName string  `json:"instrument_name"`
	MarkPrice      float64 `json:"mark_price"`
	MarkIV         float64 `json:"mark_iv"`
	BidIV          float64 `json:"bid_iv"`
	AskIV          float64 `json:"ask_iv"`
	OpenInterest   float64 `json:"open_interest"`
	Greeks         Greeks  `json:"greeks"`
	Stats          Stats   `json:"stats"`
}

type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

type Stats struct {
	Volume      float64 `json:"volume"`
	PriceChange float64 `json:"price_change"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
}
