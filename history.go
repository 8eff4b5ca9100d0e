package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/volquant/volsurf/models"
	"github.com/volquant/volsurf/snapshot"
)

const dateLayout = "2006-01-02"

var divider = strings.Repeat("=", 60)

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dir := fs.String("dir", defaultSnapshotDir, "snapshot directory")
	currency := fs.String("currency", "", "filter snapshots by currency")
	list := fs.Bool("list", false, "list stored snapshots")
	compare := fs.String("compare", "", "compare two snapshots: DATE1,DATE2 (YYYY-MM-DD)")
	timeseries := fs.Bool("timeseries", false, "print the metrics time series")
	event := fs.String("event", "", "analyze snapshots around an event date (YYYY-MM-DD)")
	daysBefore := fs.Int("days-before", 7, "event window: days before")
	daysAfter := fs.Int("days-after", 7, "event window: days after")
	fs.Parse(args)

	store, err := snapshot.NewStore(*dir)
	if err != nil {
		log.Fatal(err)
	}
	snaps, err := store.LoadAll(strings.ToUpper(*currency))
	if err != nil {
		log.Fatal(err)
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots found")
		return
	}

	switch {
	case *list:
		historyList(snaps)
	case *compare != "":
		historyCompare(snaps, *compare)
	case *timeseries:
		historyTimeseries(snaps)
	case *event != "":
		historyEvent(snaps, *event, *daysBefore, *daysAfter)
	default:
		historyList(snaps)
	}
}

func historyList(snaps []*models.Snapshot) {
	fmt.Printf("%-22s %-5s %12s %8s %12s\n", "TIMESTAMP", "CCY", "PRICE", "DVOL", "ATM_IV_30D")
	for _, snap := range snaps {
		dvol := "n/a"
		if snap.DVOL != nil {
			dvol = fmt.Sprintf("%.2f", *snap.DVOL)
		}
		atm := "n/a"
		if v, ok := snap.Metrics["atm_iv_30d"]; ok && !math.IsNaN(v) {
			atm = fmt.Sprintf("%.4f", v)
		}
		fmt.Printf("%-22s %-5s %12.2f %8s %12s\n",
			snap.Timestamp.Format("2006-01-02 15:04:05"), snap.Currency, snap.UnderlyingPrice, dvol, atm)
	}
}

func historyCompare(snaps []*models.Snapshot, spec string) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		log.Fatal("-compare expects DATE1,DATE2")
	}
	d1, err := time.Parse(dateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		log.Fatalf("invalid date %q: %s", parts[0], err)
	}
	d2, err := time.Parse(dateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		log.Fatalf("invalid date %q: %s", parts[1], err)
	}

	s1 := snapshot.ClosestTo(snaps, d1)
	s2 := snapshot.ClosestTo(snaps, d2)
	if s1 == nil || s2 == nil {
		log.Fatal("no snapshots to compare")
	}

	fmt.Printf("Comparing %s -> %s\n", s1.Timestamp.Format(dateLayout), s2.Timestamp.Format(dateLayout))
	fmt.Printf("Underlying: $%.2f -> $%.2f (%+.2f%%)\n",
		s1.UnderlyingPrice, s2.UnderlyingPrice,
		100*(s2.UnderlyingPrice-s1.UnderlyingPrice)/s1.UnderlyingPrice)

	printMetricDeltas(s1.Metrics, s2.Metrics)

	if diff := meanAbsIVDiff(s1.Surface, s2.Surface); !math.IsNaN(diff) {
		fmt.Printf("Mean |IV change| over overlapping grid: %.4f\n", diff)
	} else {
		fmt.Println("Surfaces not comparable (different grids or no overlap)")
	}
}

func historyTimeseries(snaps []*models.Snapshot) {
	points := snapshot.MetricsTimeSeries(snaps)
	keys := metricKeys(points)

	fmt.Printf("%-22s %12s", "TIMESTAMP", "PRICE")
	for _, k := range keys {
		fmt.Printf(" %14s", k)
	}
	fmt.Println()

	for _, p := range points {
		fmt.Printf("%-22s %12.2f", p.Timestamp.Format("2006-01-02 15:04:05"), p.UnderlyingPrice)
		for _, k := range keys {
			v, ok := p.Metrics[k]
			if !ok || math.IsNaN(v) {
				fmt.Printf(" %14s", "n/a")
				continue
			}
			fmt.Printf(" %14.4f", v)
		}
		fmt.Println()
	}
}

func historyEvent(snaps []*models.Snapshot, date string, daysBefore, daysAfter int) {
	eventTime, err := time.Parse(dateLayout, date)
	if err != nil {
		log.Fatalf("invalid event date %q: %s", date, err)
	}

	before := snapshot.ClosestTo(snaps, eventTime.AddDate(0, 0, -daysBefore))
	after := snapshot.ClosestTo(snaps, eventTime.AddDate(0, 0, daysAfter))
	if before == nil || after == nil {
		log.Fatal("no snapshots around event date")
	}
	if !before.Timestamp.Before(after.Timestamp) {
		fmt.Println("Warning: pre- and post-event snapshots are not in order; widen the window")
	}

	fmt.Printf("Event %s: before=%s after=%s\n", date,
		before.Timestamp.Format("2006-01-02 15:04:05"), after.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Underlying: $%.2f -> $%.2f (%+.2f%%)\n",
		before.UnderlyingPrice, after.UnderlyingPrice,
		100*(after.UnderlyingPrice-before.UnderlyingPrice)/before.UnderlyingPrice)

	fmt.Println("\nMetric changes (percentage points):")
	for _, k := range sortedKeys(before.Metrics) {
		v1 := before.Metrics[k]
		v2, ok := after.Metrics[k]
		if !ok || math.IsNaN(v1) || math.IsNaN(v2) {
			continue
		}
		fmt.Printf("  %-24s %+.2fpp\n", k, 100*(v2-v1))
	}
}

func printMetrics(m map[string]float64) {
	fmt.Printf("\n%s\nSURFACE METRICS\n%s\n", divider, divider)
	for _, k := range sortedKeys(m) {
		v := m[k]
		if math.IsNaN(v) {
			fmt.Printf("%-24s n/a\n", k)
			continue
		}
		fmt.Printf("%-24s %.4f\n", k, v)
	}
}

func printMetricDeltas(m1, m2 map[string]float64) {
	fmt.Println("\nMetric deltas:")
	for _, k := range sortedKeys(m1) {
		v1 := m1[k]
		v2, ok := m2[k]
		if !ok || math.IsNaN(v1) || math.IsNaN(v2) {
			continue
		}
		fmt.Printf("  %-24s %.4f -> %.4f (%+.4f)\n", k, v1, v2, v2-v1)
	}
}

// meanAbsIVDiff averages |IV1-IV2| over cells defined in both surfaces.
// Surfaces with different grid shapes are not comparable.
func meanAbsIVDiff(s1, s2 *models.Surface) float64 {
	if s1 == nil || s2 == nil || s1.Rows != s2.Rows || s1.Cols != s2.Cols {
		return math.NaN()
	}
	var sum float64
	var n int
	for i := 0; i < s1.Rows; i++ {
		for j := 0; j < s1.Cols; j++ {
			a, b := s1.IV[i][j], s2.IV[i][j]
			if math.IsNaN(a) || math.IsNaN(b) {
				continue
			}
			sum += math.Abs(a - b)
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func metricKeys(points []snapshot.MetricsPoint) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range points {
		for k := range p.Metrics {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
