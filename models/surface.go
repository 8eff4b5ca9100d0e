package models

import (
	"fmt"
	"math"
)

// Surface is an implied-volatility surface over (log-moneyness,
// time-to-expiration): two parallel coordinate meshes plus a co-indexed
// IV mesh, all of shape Rows x Cols. Row count is not fixed by
// construction parameters (the SVI builder emits one row per fitted
// expiration), so the dimensions are carried explicitly. IV cells may be
// NaN where a builder defines no value; defined cells are finite,
// non-negative decimal volatilities. A surface is treated as immutable
// once built.
type Surface struct {
	Rows         int
	Cols         int
	LogMoneyness [][]float64
	TTE          [][]float64
	IV           [][]float64
}

func NewSurface(rows, cols int) *Surface {
	s := &Surface{
		Rows:         rows,
		Cols:         cols,
		LogMoneyness: make([][]float64, rows),
		TTE:          make([][]float64, rows),
		IV:           make([][]float64, rows),
	}
	for i := 0; i < rows; i++ {
		s.LogMoneyness[i] = make([]float64, cols)
		s.TTE[i] = make([]float64, cols)
		s.IV[i] = make([]float64, cols)
	}
	return s
}

// Validate checks the shared-shape invariant and that every defined IV
// cell is finite and non-negative.
func (s *Surface) Validate() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("surface has no cells (%dx%d)", s.Rows, s.Cols)
	}
	if len(s.LogMoneyness) != s.Rows || len(s.TTE) != s.Rows || len(s.IV) != s.Rows {
		return fmt.Errorf("mesh row count does not match Rows=%d", s.Rows)
	}
	for i := 0; i < s.Rows; i++ {
		if len(s.LogMoneyness[i]) != s.Cols || len(s.TTE[i]) != s.Cols || len(s.IV[i]) != s.Cols {
			return fmt.Errorf("mesh column count at row %d does not match Cols=%d", i, s.Cols)
		}
		for j := 0; j < s.Cols; j++ {
			iv := s.IV[i][j]
			if math.IsNaN(iv) {
				continue
			}
			if math.IsInf(iv, 0) || iv < 0 {
				return fmt.Errorf("invalid IV %.6f at cell (%d,%d)", iv, i, j)
			}
		}
	}
	return nil
}

// TotalVariance evaluates the SVI curve at log-moneyness k.
func (p SVIParams) TotalVariance(k float64) float64 {
	d := k - p.M
	return p.A + p.B*(p.Rho*d+math.Sqrt(d*d+p.Sigma*p.Sigma))
}
