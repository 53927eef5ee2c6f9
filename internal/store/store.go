package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

// Region is one immutable scored geographic unit. Geometry stays opaque
// raw JSON and is passed through to the rendering side unchanged; only
// the dataset bounds are ever derived from it.
type Region struct {
	ID       string               `json:"id"`
	Name     string               `json:"name,omitempty"`
	Geometry json.RawMessage      `json:"geometry,omitempty"`
	Scores   scoring.FactorScores `json:"scores"`
}

// Dataset is a fully loaded region set, immutable for its lifetime.
// Region order is stable and fixes the row order of every recolor batch.
type Dataset struct {
	Name     string
	Regions  []*Region
	Bounds   []float64 // [lonMin, latMin, lonMax, latMax], nil when unknown
	LoadedAt time.Time

	byID map[string]*Region
}

// NewDataset indexes the region list. Later duplicates of an id shadow
// earlier ones in lookups but keep their slot in the batch order.
func NewDataset(name string, regions []*Region, bounds []float64) *Dataset {
	d := &Dataset{
		Name:     name,
		Regions:  regions,
		Bounds:   bounds,
		LoadedAt: time.Now().UTC(),
		byID:     make(map[string]*Region, len(regions)),
	}
	for _, r := range regions {
		d.byID[r.ID] = r
	}
	return d
}

// Region looks up a region by id.
func (d *Dataset) Region(id string) (*Region, bool) {
	r, ok := d.byID[id]
	return r, ok
}

// Len returns the region count.
func (d *Dataset) Len() int { return len(d.Regions) }

// DatasetInfo describes an available dataset without loading it.
type DatasetInfo struct {
	Name      string    `json:"name"`
	Regions   int       `json:"regions,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Stats summarizes what a store currently holds.
type Stats struct {
	Datasets int            `json:"datasets"`
	Regions  int            `json:"regions"`
	ByName   map[string]int `json:"by_name,omitempty"`
}

// Store supplies immutable datasets to the engine. Implementations read
// pre-joined factor scores; data acquisition and ETL live elsewhere.
type Store interface {
	LoadDataset(ctx context.Context, name string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// extendBounds widens total with the envelope of one raw GeoJSON
// geometry. Undecodable geometry is skipped; bounds are a hint, not a
// contract.
func extendBounds(total *geom.Bounds, raw json.RawMessage) *geom.Bounds {
	if len(raw) == 0 {
		return total
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil || g == nil {
		return total
	}
	if total == nil {
		total = geom.NewBounds(geom.XY)
	}
	return total.Extend(g)
}

// boundsSlice flattens bounds for JSON payloads.
func boundsSlice(b *geom.Bounds) []float64 {
	if b == nil {
		return nil
	}
	return []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
}
