package models

import (
	"encoding/json"
	"math"
)

// JSON cannot represent NaN, so undefined Greeks serialize as null and
// come back as NaN.

type greeksResultJSON struct {
	SmoothedIV *float64 `json:"smoothed_iv"`
	Delta      *float64 `json:"bs_delta"`
	Gamma      *float64 `json:"bs_gamma"`
	Vega       *float64 `json:"bs_vega"`
	Theta      *float64 `json:"bs_theta"`
	Rho        *float64 `json:"bs_rho"`
}

func (g GreeksResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(greeksResultJSON{
		SmoothedIV: floatPtr(g.SmoothedIV),
		Delta:      floatPtr(g.Delta),
		Gamma:      floatPtr(g.Gamma),
		Vega:       floatPtr(g.Vega),
		Theta:      floatPtr(g.Theta),
		Rho:        floatPtr(g.Rho),
	})
}

func (g *GreeksResult) UnmarshalJSON(data []byte) error {
	var doc greeksResultJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	g.SmoothedIV = ptrFloat(doc.SmoothedIV)
	g.Delta = ptrFloat(doc.Delta)
	g.Gamma = ptrFloat(doc.Gamma)
	g.Vega = ptrFloat(doc.Vega)
	g.Theta = ptrFloat(doc.Theta)
	g.Rho = ptrFloat(doc.Rho)
	return nil
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ptrFloat(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
