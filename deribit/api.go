// Package deribit fetches option-chain quotes from the Deribit public
// API and assembles the quote table the surface pipeline consumes.
package deribit

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/volquant/volsurf/models"
)

// APIBase can be overridden (DERIBIT_API_URL) to point at the testnet.
var APIBase = "https://www.deribit.com/api/v2"

const yearHours = 365.25 * 24

func GET_INDEX_PRICE(currency string) (float64, error) {
	apiURL := fmt.Sprintf("%s/public/get_index_price?index_name=%s_usd", APIBase, strings.ToLower(currency))

	body, err := getJSON(apiURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch index price: %w", err)
	}

	indexPrice := &IndexPriceResponse{}
	if err := json.Unmarshal(body, indexPrice); err != nil {
		return 0, fmt.Errorf("failed to unmarshal index price response: %s", err.Error())
	}
	if indexPrice.Result.IndexPrice <= 0 {
		return 0, fmt.Errorf("exchange returned non-positive index price %.4f for %s", indexPrice.Result.IndexPrice, currency)
	}

	return indexPrice.Result.IndexPrice, nil
}

// GET_DVOL returns the DVOL volatility-index mark, or nil when the
// exchange has no DVOL ticker for the currency.
func GET_DVOL(currency string) *float64 {
	apiURL := fmt.Sprintf("%s/public/ticker?instrument_name=%sVOL", APIBase, currency)

	body, err := getJSON(apiURL)
	if err != nil {
		return nil
	}

	ticker := &TickerResponse{}
	if err := json.Unmarshal(body, ticker); err != nil {
		return nil
	}
	if ticker.Result.MarkPrice <= 0 {
		return nil
	}

	dvol := ticker.Result.MarkPrice
	return &dvol
}

// GET_INSTRUMENTS lists the active option instruments for a currency.
func GET_INSTRUMENTS(currency string) ([]Instrument, error) {
	apiURL := fmt.Sprintf("%s/public/get_instruments?currency=%s&kind=option&expired=false", APIBase, url.QueryEscape(currency))

	body, err := getJSON(apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instruments: %w", err)
	}

	instruments := &InstrumentsResponse{}
	if err := json.Unmarshal(body, instruments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instruments response: %s", err.Error())
	}

	return instruments.Result, nil
}

// GET_QUOTE_TABLE pulls the ticker for every instrument and builds the
// raw quote table. Individual ticker failures are skipped, not fatal.
func GET_QUOTE_TABLE(instruments []Instrument, underlyingPrice float64) ([]models.OptionQuote, error) {
	if underlyingPrice <= 0 {
		return nil, fmt.Errorf("invalid underlying price %.4f", underlyingPrice)
	}

	fmt.Printf("Fetching data for %d options...\n", len(instruments))

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(instruments)),
		mpb.PrependDecorators(
			decor.Name("Tickers"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	now := time.Now()
	quotes := make([]models.OptionQuote, 0, len(instruments))
	for _, inst := range instruments {
		ticker, err := getTicker(inst.InstrumentName)
		bar.Increment()
		if err != nil {
			fmt.Printf("Error fetching %s: %s\n", inst.InstrumentName, err.Error())
			continue
		}

		expiration := time.UnixMilli(inst.ExpirationTimestamp)
		tteYears := expiration.Sub(now).Hours() / yearHours
		moneyness := inst.Strike / underlyingPrice

		markIV := ticker.MarkIV
		if markIV == 0 {
			// Deribit omits IVs for untraded instruments; keep the row
			// and let cleaning drop it.
			markIV = math.NaN()
		}

		quotes = append(quotes, models.OptionQuote{
			Instrument:      inst.InstrumentName,
			Strike:          inst.Strike,
			Expiration:      expiration,
			OptionType:      models.OptionType(inst.OptionType),
			MarkIV:          markIV,
			BidIV:           ticker.BidIV,
			AskIV:           ticker.AskIV,
			Moneyness:       moneyness,
			LogMoneyness:    math.Log(moneyness),
			TTEDays:         tteYears * 365.25,
			TTEYears:        tteYears,
			Delta:           ticker.Greeks.Delta,
			Gamma:           ticker.Greeks.Gamma,
			Theta:           ticker.Greeks.Theta,
			Vega:            ticker.Greeks.Vega,
			Rho:             ticker.Greeks.Rho,
			Volume:          ticker.Stats.Volume,
			OpenInterest:    ticker.OpenInterest,
			UnderlyingPrice: underlyingPrice,
		})
	}

	p.Wait()
	fmt.Println("Data collection complete!")
	return quotes, nil
}

func getTicker(instrumentName string) (*Ticker, error) {
	apiURL := fmt.Sprintf("%s/public/ticker?instrument_name=%s", APIBase, url.QueryEscape(instrumentName))

	body, err := getJSON(apiURL)
	if err != nil {
		return nil, err
	}

	ticker := &TickerResponse{}
	if err := json.Unmarshal(body, ticker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker response: %s", err.Error())
	}

	return &ticker.Result, nil
}

func getJSON(apiURL string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	r, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return nil, err
	}
	r.Header.Add("Accept", "application/json")

	resp, err := client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response data: %s", err.Error())
	}
	return body, nil
}
