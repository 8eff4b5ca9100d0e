// Package snapshot persists volatility surface snapshots as JSON files,
// one per build, and reloads them for historical comparison. NaN mesh
// cells are stored as JSON null and restored as NaN, so a save/load
// round trip reproduces the meshes exactly.
package snapshot

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xhhuango/json"

	"github.com/volquant/volsurf/models"
)

const fileTimeLayout = "20060102_150405"

// Store is a directory of snapshot files named
// <CURRENCY>_<YYYYMMDD_HHMMSS>.json, with optional *_raw.json sidecars
// holding the annotated quote table.
type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

type snapshotJSON struct {
	Timestamp       string             `json:"timestamp"`
	Currency        string             `json:"currency"`
	UnderlyingPrice float64            `json:"underlying_price"`
	DVOL            *float64           `json:"dvol"`
	SurfaceData     surfaceJSON        `json:"surface_data"`
	Metrics         map[string]*float64 `json:"metrics"`
}

type surfaceJSON struct {
	LogMoneynessMesh [][]float64  `json:"log_moneyness_mesh"`
	TTEMesh          [][]float64  `json:"tte_mesh"`
	IVSurface        [][]*float64 `json:"iv_surface"`
}

// Save writes the snapshot to disk and returns the file path. With
// saveRaw, the annotated quotes go to a sidecar file; raw quotes are
// never required to reconstruct the surface or metrics.
func (s *Store) Save(snap *models.Snapshot, saveRaw bool) (string, error) {
	if snap.Surface == nil {
		return "", fmt.Errorf("snapshot has no surface")
	}

	doc := snapshotJSON{
		Timestamp:       snap.Timestamp.Format(time.RFC3339),
		Currency:        snap.Currency,
		UnderlyingPrice: snap.UnderlyingPrice,
		DVOL:            snap.DVOL,
		SurfaceData: surfaceJSON{
			LogMoneynessMesh: snap.Surface.LogMoneyness,
			TTEMesh:          snap.Surface.TTE,
			IVSurface:        encodeMesh(snap.Surface.IV),
		},
		Metrics: encodeMetrics(snap.Metrics),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling snapshot: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", snap.Currency, snap.Timestamp.Format(fileTimeLayout))
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing snapshot %s: %w", path, err)
	}

	if saveRaw && snap.Quotes != nil {
		rawPath := strings.TrimSuffix(path, ".json") + "_raw.json"
		rawData, err := json.Marshal(snap.Quotes)
		if err != nil {
			return "", fmt.Errorf("marshalling raw quotes: %w", err)
		}
		if err := os.WriteFile(rawPath, rawData, 0644); err != nil {
			return "", fmt.Errorf("writing raw quotes %s: %w", rawPath, err)
		}
	}

	fmt.Printf("Snapshot saved: %s\n", path)
	return path, nil
}

// Load reads one snapshot file. Quotes are left nil; LoadRaw restores
// them from the sidecar when present.
func (s *Store) Load(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var doc snapshotJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot timestamp %q: %w", doc.Timestamp, err)
	}

	surf, err := decodeSurface(doc.SurfaceData)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	return &models.Snapshot{
		Timestamp:       ts,
		Currency:        doc.Currency,
		UnderlyingPrice: doc.UnderlyingPrice,
		DVOL:            doc.DVOL,
		Surface:         surf,
		Metrics:         decodeMetrics(doc.Metrics),
	}, nil
}

// LoadAll returns the stored snapshots sorted by timestamp, optionally
// filtered by currency.
func (s *Store) LoadAll(currency string) ([]*models.Snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot dir %s: %w", s.Dir, err)
	}

	var snaps []*models.Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, "_raw.json") {
			continue
		}
		if currency != "" && !strings.HasPrefix(name, currency+"_") {
			continue
		}
		snap, err := s.Load(filepath.Join(s.Dir, name))
		if err != nil {
			fmt.Printf("Skipping unreadable snapshot %s: %s\n", name, err)
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Timestamp.Before(snaps[j].Timestamp) })
	fmt.Printf("Loaded %d snapshots\n", len(snaps))
	return snaps, nil
}

// LoadRaw restores the annotated quote table from a snapshot's sidecar
// file, if one was saved.
func (s *Store) LoadRaw(snap *models.Snapshot) error {
	name := fmt.Sprintf("%s_%s_raw.json", snap.Currency, snap.Timestamp.Format(fileTimeLayout))
	path := filepath.Join(s.Dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading raw quotes %s: %w", path, err)
	}
	var quotes []models.AnnotatedQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return fmt.Errorf("parsing raw quotes %s: %w", path, err)
	}
	snap.Quotes = quotes
	return nil
}

// ClosestTo picks the snapshot whose timestamp is nearest the target.
func ClosestTo(snaps []*models.Snapshot, target time.Time) *models.Snapshot {
	var best *models.Snapshot
	bestDiff := time.Duration(math.MaxInt64)
	for _, snap := range snaps {
		diff := snap.Timestamp.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best = snap
			bestDiff = diff
		}
	}
	return best
}

// MetricsPoint is one row of the metrics time series.
type MetricsPoint struct {
	Timestamp       time.Time
	UnderlyingPrice float64
	DVOL            *float64
	Metrics         map[string]float64
}

// MetricsTimeSeries flattens snapshot metrics into a chronological
// series.
func MetricsTimeSeries(snaps []*models.Snapshot) []MetricsPoint {
	points := make([]MetricsPoint, len(snaps))
	for i, snap := range snaps {
		points[i] = MetricsPoint{
			Timestamp:       snap.Timestamp,
			UnderlyingPrice: snap.UnderlyingPrice,
			DVOL:            snap.DVOL,
			Metrics:         snap.Metrics,
		}
	}
	return points
}

// encodeMesh turns NaN cells into nulls; JSON has no NaN literal.
func encodeMesh(mesh [][]float64) [][]*float64 {
	out := make([][]*float64, len(mesh))
	for i, row := range mesh {
		out[i] = make([]*float64, len(row))
		for j := range row {
			if math.IsNaN(row[j]) {
				continue
			}
			v := row[j]
			out[i][j] = &v
		}
	}
	return out
}

func decodeMesh(mesh [][]*float64) [][]float64 {
	out := make([][]float64, len(mesh))
	for i, row := range mesh {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = *v
		}
	}
	return out
}

func encodeMetrics(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return out
}

func decodeMetrics(m map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = math.NaN()
			continue
		}
		out[k] = *v
	}
	return out
}

func decodeSurface(data surfaceJSON) (*models.Surface, error) {
	iv := decodeMesh(data.IVSurface)
	rows := len(iv)
	if rows == 0 || len(data.LogMoneynessMesh) != rows || len(data.TTEMesh) != rows {
		return nil, fmt.Errorf("surface meshes have mismatched or zero row counts")
	}
	cols := len(iv[0])
	surf := &models.Surface{
		Rows:         rows,
		Cols:         cols,
		LogMoneyness: data.LogMoneynessMesh,
		TTE:          data.TTEMesh,
		IV:           iv,
	}
	if err := surf.Validate(); err != nil {
		return nil, err
	}
	return surf, nil
}
