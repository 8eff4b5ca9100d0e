package volslack

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/pipeline"
)

func TestFormatSnapshot(t *testing.T) {
	dvol := 52.5
	result := &pipeline.BuildResult{
		Calls: make([]models.OptionQuote, 3),
		Puts:  make([]models.OptionQuote, 2),
		Violations: []models.ParityViolation{
			{Strike: 70000, CallIV: 0.6, PutIV: 0.5, Diff: 0.1},
		},
		Snapshot: &models.Snapshot{
			Timestamp:       time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC),
			Currency:        "BTC",
			UnderlyingPrice: 64250,
			DVOL:            &dvol,
			Metrics: map[string]float64{
				"atm_iv_30d": 0.5234,
				"skew_25d":   math.NaN(),
			},
		},
	}

	text := formatSnapshot(result)

	for _, want := range []string{
		"*BTC volatility surface*",
		"Underlying: $64250.00",
		"DVOL: 52.50%",
		"3 calls / 2 puts, 1 parity violations",
		"atm_iv_30d: 0.5234",
		"skew_25d: n/a",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	// Metric lines come out in sorted key order.
	if strings.Index(text, "atm_iv_30d") > strings.Index(text, "skew_25d") {
		t.Errorf("metrics not sorted by key:\n%s", text)
	}
}
