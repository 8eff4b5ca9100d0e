package snapshot_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/snapshot"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func sampleSnapshot(currency string, ts time.Time) *models.Snapshot {
	surf := models.NewSurface(2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			surf.LogMoneyness[i][j] = -0.1 + 0.2*float64(j)
			surf.TTE[i][j] = 0.1 + 0.2*float64(i)
			surf.IV[i][j] = 0.5 + 0.01*float64(i*2+j)
		}
	}
	surf.IV[1][1] = math.NaN() // hole survives the round trip

	dvol := 52.5
	return &models.Snapshot{
		Timestamp:       ts,
		Currency:        currency,
		UnderlyingPrice: 64250.0,
		DVOL:            &dvol,
		Surface:         surf,
		Quotes: []models.AnnotatedQuote{
			{
				OptionQuote: models.OptionQuote{
					Instrument: "BTC-27MAR26-70000-C",
					Strike:     70000,
					Expiration: time.Date(2026, 3, 27, 8, 0, 0, 0, time.UTC),
					OptionType: models.Call,
					MarkIV:     0.55,
					TTEYears:   0.6,
				},
				BS: models.GreeksResult{
					SmoothedIV: 0.54,
					Delta:      0.45,
					Gamma:      math.NaN(), // undefined Greeks become null
					Vega:       12.3,
					Theta:      -5.1,
					Rho:        math.NaN(),
				},
			},
		},
		Metrics: map[string]float64{
			"atm_iv_30d": 0.52,
			"skew_25d":   math.NaN(),
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	ts := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	snap := sampleSnapshot("BTC", ts)

	path, err := store.Save(snap, true)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasSuffix(path, "BTC_20260820_143000.json") {
		t.Errorf("unexpected snapshot filename: %s", path)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if !loaded.Timestamp.Equal(ts) {
		t.Errorf("timestamp: expected %v, got %v", ts, loaded.Timestamp)
	}
	if loaded.Currency != "BTC" || loaded.UnderlyingPrice != 64250.0 {
		t.Errorf("header fields mangled: %+v", loaded)
	}
	if loaded.DVOL == nil || !approxEqual(*loaded.DVOL, 52.5, 1e-12) {
		t.Errorf("dvol: expected 52.5, got %v", loaded.DVOL)
	}

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := snap.Surface.IV[i][j]
			got := loaded.Surface.IV[i][j]
			if math.IsNaN(want) != math.IsNaN(got) {
				t.Errorf("IV (%d,%d): NaN-ness changed: %v vs %v", i, j, want, got)
				continue
			}
			if !math.IsNaN(want) && want != got {
				t.Errorf("IV (%d,%d): expected %v, got %v", i, j, want, got)
			}
			if snap.Surface.LogMoneyness[i][j] != loaded.Surface.LogMoneyness[i][j] {
				t.Errorf("log-moneyness mesh changed at (%d,%d)", i, j)
			}
			if snap.Surface.TTE[i][j] != loaded.Surface.TTE[i][j] {
				t.Errorf("tte mesh changed at (%d,%d)", i, j)
			}
		}
	}

	if !approxEqual(loaded.Metrics["atm_iv_30d"], 0.52, 1e-12) {
		t.Errorf("atm_iv_30d: expected 0.52, got %v", loaded.Metrics["atm_iv_30d"])
	}
	if !math.IsNaN(loaded.Metrics["skew_25d"]) {
		t.Errorf("NaN metric should survive the round trip, got %v", loaded.Metrics["skew_25d"])
	}

	if loaded.Quotes != nil {
		t.Errorf("Load should not restore quotes; LoadRaw does")
	}
	if err := store.LoadRaw(loaded); err != nil {
		t.Fatalf("LoadRaw returned error: %v", err)
	}
	if len(loaded.Quotes) != 1 {
		t.Fatalf("expected 1 raw quote, got %d", len(loaded.Quotes))
	}
	q := loaded.Quotes[0]
	if q.Instrument != "BTC-27MAR26-70000-C" || q.Strike != 70000 {
		t.Errorf("raw quote mangled: %+v", q)
	}
	if !approxEqual(q.BS.Delta, 0.45, 1e-12) {
		t.Errorf("bs_delta: expected 0.45, got %v", q.BS.Delta)
	}
	if !math.IsNaN(q.BS.Gamma) || !math.IsNaN(q.BS.Rho) {
		t.Errorf("undefined Greeks should load back as NaN: %+v", q.BS)
	}
}

func TestLoadAll(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	times := []time.Time{
		time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
	}
	for _, ts := range times {
		if _, err := store.Save(sampleSnapshot("BTC", ts), true); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}
	if _, err := store.Save(sampleSnapshot("ETH", times[0]), false); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	t.Run("FilterAndOrder", func(t *testing.T) {
		snaps, err := store.LoadAll("BTC")
		if err != nil {
			t.Fatalf("LoadAll returned error: %v", err)
		}
		if len(snaps) != 3 {
			t.Fatalf("expected 3 BTC snapshots, got %d", len(snaps))
		}
		for i := 1; i < len(snaps); i++ {
			if !snaps[i-1].Timestamp.Before(snaps[i].Timestamp) {
				t.Errorf("snapshots not in chronological order")
			}
		}
	})

	t.Run("NoFilterLoadsEverything", func(t *testing.T) {
		snaps, err := store.LoadAll("")
		if err != nil {
			t.Fatalf("LoadAll returned error: %v", err)
		}
		if len(snaps) != 4 {
			t.Errorf("expected 4 snapshots, got %d", len(snaps))
		}
	})

	t.Run("ClosestTo", func(t *testing.T) {
		snaps, err := store.LoadAll("BTC")
		if err != nil {
			t.Fatalf("LoadAll returned error: %v", err)
		}
		got := snapshot.ClosestTo(snaps, time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC))
		if got == nil || !got.Timestamp.Equal(times[2]) {
			t.Errorf("expected the Aug 2 snapshot, got %+v", got)
		}
	})

	t.Run("MetricsTimeSeries", func(t *testing.T) {
		snaps, err := store.LoadAll("BTC")
		if err != nil {
			t.Fatalf("LoadAll returned error: %v", err)
		}
		points := snapshot.MetricsTimeSeries(snaps)
		if len(points) != 3 {
			t.Fatalf("expected 3 points, got %d", len(points))
		}
		for i, p := range points {
			if !p.Timestamp.Equal(snaps[i].Timestamp) {
				t.Errorf("point %d timestamp mismatch", i)
			}
			if !approxEqual(p.Metrics["atm_iv_30d"], 0.52, 1e-12) {
				t.Errorf("point %d metrics mismatch: %v", i, p.Metrics)
			}
		}
	})
}

func TestSaveRejectsSurfacelessSnapshot(t *testing.T) {
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	snap := sampleSnapshot("BTC", time.Now())
	snap.Surface = nil
	if _, err := store.Save(snap, false); err == nil {
		t.Errorf("expected error saving snapshot without a surface")
	}
}
