// Package pipeline runs the full surface build workflow: fetch quotes,
// clean, compute metrics, construct the surface from calls, derive
// Greeks for the whole table and assemble a snapshot.
package pipeline

import (
	"fmt"
	"time"

	"github.com/volquant/volsurf/deribit"
	"github.com/volquant/volsurf/greeks"
	"github.com/volquant/volsurf/metrics"
	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/surface"
)

type BuildConfig struct {
	Currency     string
	Method       surface.Method
	GridSize     int
	RiskFreeRate float64
}

type BuildResult struct {
	Snapshot   *models.Snapshot
	Calls      []models.OptionQuote
	Puts       []models.OptionQuote
	Violations []models.ParityViolation
	SVISlices  []models.SVISlice // populated for MethodSVI only
}

// Build executes the workflow end to end. A Greeks failure degrades to
// a snapshot without per-option Greeks instead of failing the build;
// everything upstream of the surface is fatal.
func Build(cfg BuildConfig) (*BuildResult, error) {
	fmt.Printf("%s\nBUILDING %s VOLATILITY SURFACE\n%s\n", divider, cfg.Currency, divider)

	underlyingPrice, err := deribit.GET_INDEX_PRICE(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("fetching market data: %w", err)
	}
	dvol := deribit.GET_DVOL(cfg.Currency)

	fmt.Printf("\nCurrent %s price: $%.2f\n", cfg.Currency, underlyingPrice)
	if dvol != nil {
		fmt.Printf("Current DVOL: %.2f%%\n", *dvol)
	}

	instruments, err := deribit.GET_INSTRUMENTS(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("fetching instruments: %w", err)
	}
	fmt.Printf("Found %d option instruments\n", len(instruments))

	raw, err := deribit.GET_QUOTE_TABLE(instruments, underlyingPrice)
	if err != nil {
		return nil, fmt.Errorf("fetching quote table: %w", err)
	}

	quotes := models.CleanQuotes(raw, models.DefaultMinTTEDays, models.DefaultMoneynessLow, models.DefaultMoneynessHigh)
	models.SummarizeQuotes(quotes)

	calls, puts := models.SeparateByType(quotes)
	violations := models.CheckCallPutParity(calls, puts)

	surfaceMetrics := metrics.Calculate(quotes, underlyingPrice)

	fmt.Printf("\nBuilding surface using %s method...\n", cfg.Method)
	result := &BuildResult{Calls: calls, Puts: puts, Violations: violations}

	var surf *models.Surface
	if cfg.Method == surface.MethodSVI {
		surf, result.SVISlices, err = surface.BuildSVISurface(calls, cfg.GridSize, 0)
	} else {
		surf, err = surface.NewBuilder(cfg.Method, cfg.GridSize).Build(calls)
	}
	if err != nil {
		return nil, fmt.Errorf("building surface: %w", err)
	}

	fmt.Println("\nCalculating Greeks from smoothed IV surface...")
	annotated, err := greeks.ComputeFromSurface(quotes, surf, underlyingPrice, cfg.RiskFreeRate)
	if err != nil {
		fmt.Printf("Warning: error calculating Greeks: %s\n", err)
		annotated = nil
	} else {
		fmt.Println("Greeks calculated successfully")
	}

	result.Snapshot = &models.Snapshot{
		Timestamp:       time.Now(),
		Currency:        cfg.Currency,
		UnderlyingPrice: underlyingPrice,
		DVOL:            dvol,
		Surface:         surf,
		Quotes:          annotated,
		Metrics:         surfaceMetrics,
	}

	return result, nil
}

var divider = "============================================================"
