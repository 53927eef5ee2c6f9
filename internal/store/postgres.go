package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twpayne/go-geom"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

// PostgresStore reads datasets from the mosaic_regions table, one row
// per region with geometry and raw scores as JSONB.
type PostgresStore struct {
	pool   *pgxpool.Pool
	invert map[string]bool
}

func NewPostgresStore(ctx context.Context, databaseURL string, invertKeys []string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool, invert: invertSet(invertKeys)}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const regionColumns = `region_id, name, geometry, scores`

func (s *PostgresStore) LoadDataset(ctx context.Context, name string) (*Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+regionColumns+`
		FROM mosaic_regions WHERE dataset = $1
		ORDER BY region_id ASC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regions, bounds, err := s.scanRegions(rows)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("dataset %s has no regions", name)
	}
	return NewDataset(name, regions, boundsSlice(bounds)), nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dataset, COUNT(*), MAX(updated_at)
		FROM mosaic_regions
		GROUP BY dataset
		ORDER BY dataset ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var updated sql.NullTime
		if err := rows.Scan(&info.Name, &info.Regions, &updated); err != nil {
			return nil, err
		}
		if updated.Valid {
			info.UpdatedAt = updated.Time
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	infos, err := s.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Datasets: len(infos), ByName: make(map[string]int)}
	for _, info := range infos {
		stats.Regions += info.Regions
		stats.ByName[info.Name] = info.Regions
	}
	return stats, nil
}

func (s *PostgresStore) scanRegions(rows pgx.Rows) ([]*Region, *geom.Bounds, error) {
	var regions []*Region
	var bounds *geom.Bounds
	for rows.Next() {
		r := &Region{}
		var name sql.NullString
		var geometryJSON, scoresJSON []byte
		if err := rows.Scan(&r.ID, &name, &geometryJSON, &scoresJSON); err != nil {
			return nil, nil, err
		}
		if name.Valid {
			r.Name = name.String
		}
		if geometryJSON != nil {
			r.Geometry = json.RawMessage(geometryJSON)
		}
		if scoresJSON != nil {
			var raw map[string]float64
			if err := json.Unmarshal(scoresJSON, &raw); err == nil {
				r.Scores = NormalizeScores(raw, s.invert)
			}
		}
		if r.Scores == nil {
			r.Scores = scoring.FactorScores{}
		}
		regions = append(regions, r)
		bounds = extendBounds(bounds, r.Geometry)
	}
	return regions, bounds, rows.Err()
}
