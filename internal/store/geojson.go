package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/twpayne/go-geom"
)

// Property keys probed for a region id, in order. Census exports label
// the tract id differently depending on vintage and tooling.
var regionIDKeys = []string{"GEOID", "GEOID20", "TRACTCE", "geoid", "tract_fips", "id"}

// Property keys probed for a display name, in order.
var regionNameKeys = []string{"name", "NAME", "NAMELSAD"}

// FileStore serves datasets from a directory of GeoJSON
// FeatureCollections, one file per dataset. Feature order in the file
// fixes the region order of the dataset.
type FileStore struct {
	dir         string
	stateFilter string
	invert      map[string]bool
	logger      *slog.Logger

	mu     sync.Mutex
	counts map[string]int
}

// NewFileStore builds a store over dir. stateFilter, when set, keeps
// only regions whose id starts with that state FIPS prefix. invertKeys
// lists source columns whose values run higher-is-worse.
func NewFileStore(dir, stateFilter string, invertKeys []string, logger *slog.Logger) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %s is not a directory", dir)
	}
	return &FileStore{
		dir:         dir,
		stateFilter: strings.TrimSpace(stateFilter),
		invert:      invertSet(invertKeys),
		logger:      logger,
		counts:      make(map[string]int),
	}, nil
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         interface{}            `json:"id,omitempty"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

func (s *FileStore) LoadDataset(ctx context.Context, name string) (*Dataset, error) {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid dataset name %q", name)
	}
	path := filepath.Join(s.dir, name+".geojson")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", name, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", name, err)
	}

	regions := make([]*Region, 0, len(fc.Features))
	var bounds *geom.Bounds
	skipped := 0
	for _, f := range fc.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := featureID(f)
		if id == "" {
			skipped++
			continue
		}
		if s.stateFilter != "" && !strings.HasPrefix(id, s.stateFilter) {
			continue
		}
		regions = append(regions, &Region{
			ID:       id,
			Name:     propString(f.Properties, regionNameKeys),
			Geometry: f.Geometry,
			Scores:   NormalizeScores(numericProps(f.Properties), s.invert),
		})
		bounds = extendBounds(bounds, f.Geometry)
	}
	if skipped > 0 {
		s.logger.Warn("skipped features without a region id", "dataset", name, "count", skipped)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("dataset %s has no regions", name)
	}

	s.mu.Lock()
	s.counts[name] = len(regions)
	s.mu.Unlock()

	s.logger.Info("dataset loaded", "dataset", name, "regions", len(regions))
	return NewDataset(name, regions, boundsSlice(bounds)), nil
}

func (s *FileStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]DatasetInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".geojson") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".geojson")
		info := DatasetInfo{Name: name, Regions: s.counts[name]}
		if fi, err := e.Info(); err == nil {
			info.UpdatedAt = fi.ModTime().UTC()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	infos, err := s.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Datasets: len(infos), ByName: make(map[string]int)}
	for _, info := range infos {
		stats.Regions += info.Regions
		if info.Regions > 0 {
			stats.ByName[info.Name] = info.Regions
		}
	}
	return stats, nil
}

func (s *FileStore) Close() error { return nil }

// featureID resolves the region id from the property fallbacks, then
// from the feature-level id.
func featureID(f feature) string {
	if id := propString(f.Properties, regionIDKeys); id != "" {
		return id
	}
	return asString(f.ID)
}

func propString(props map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// asString renders ids that sources store as JSON numbers. Whole
// numbers print without a fraction so numeric GEOIDs stay usable.
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func numericProps(props map[string]interface{}) map[string]float64 {
	raw := make(map[string]float64, len(props))
	for k, v := range props {
		if f, ok := v.(float64); ok {
			raw[k] = f
		}
	}
	return raw
}
