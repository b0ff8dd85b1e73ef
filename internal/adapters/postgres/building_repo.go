package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

const buildingColumns = `id, name, lat, lon, COALESCE(image_url, ''), rating,
		       COALESCE(address, ''), COALESCE(architect, ''), COALESCE(year, 0), created_at`

// BuildingRepo implements ports.BuildingRepository with pgx.
type BuildingRepo struct {
	db *DB
}

// NewBuildingRepo creates a new BuildingRepo.
func NewBuildingRepo(db *DB) *BuildingRepo {
	return &BuildingRepo{db: db}
}

const upsertBuilding = `
	INSERT INTO buildings (id, name, lat, lon, image_url, rating, address, architect, year)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, 0))
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
	    image_url = EXCLUDED.image_url, rating = EXCLUDED.rating,
	    address = EXCLUDED.address, architect = EXCLUDED.architect, year = EXCLUDED.year
`

// Upsert inserts or updates a single building.
func (r *BuildingRepo) Upsert(ctx context.Context, b *domain.Building) error {
	_, err := r.db.Pool.Exec(ctx, upsertBuilding,
		b.ID, b.Name, b.Location.Lat, b.Location.Lon, b.ImageURL, b.Rating,
		b.Address, b.Architect, b.Year)
	return err
}

// UpsertBatch inserts many buildings using pgx.Batch.
func (r *BuildingRepo) UpsertBatch(ctx context.Context, bs []domain.Building) error {
	batch := &pgx.Batch{}
	for _, b := range bs {
		batch.Queue(upsertBuilding,
			b.ID, b.Name, b.Location.Lat, b.Location.Lon, b.ImageURL, b.Rating,
			b.Address, b.Architect, b.Year)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range bs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a building by id.
func (r *BuildingRepo) GetByID(ctx context.Context, id string) (*domain.Building, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1`, id)
	b, err := scanBuilding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDs returns multiple buildings by id, ordered by name.
func (r *BuildingRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Building, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.query(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = ANY($1) ORDER BY name`, ids)
}

// List returns every building ordered by name.
func (r *BuildingRepo) List(ctx context.Context) ([]domain.Building, error) {
	return r.query(ctx, `SELECT `+buildingColumns+` FROM buildings ORDER BY name`)
}

// FindNearby returns buildings within radiusMeters of (lat, lon), closest
// first. The bounding box narrows the scan on the (lat, lon) index; the exact
// great-circle distance decides membership.
func (r *BuildingRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Building, error) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)
	candidates, err := r.query(ctx, `
		SELECT `+buildingColumns+`
		FROM buildings
		WHERE lat BETWEEN $1 AND $3 AND lon BETWEEN $2 AND $4
	`, minLat, minLon, maxLat, maxLon)
	if err != nil {
		return nil, err
	}

	nearby := candidates[:0]
	for _, b := range candidates {
		d := geospatial.Haversine(lat, lon, b.Location.Lat, b.Location.Lon)
		if d > radiusMeters {
			continue
		}
		b.Distance = &d
		nearby = append(nearby, b)
	}
	sort.Slice(nearby, func(i, j int) bool { return *nearby[i].Distance < *nearby[j].Distance })
	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

func (r *BuildingRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Building, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []domain.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

func scanBuilding(row pgx.Row) (domain.Building, error) {
	var b domain.Building
	err := row.Scan(
		&b.ID, &b.Name, &b.Location.Lat, &b.Location.Lon, &b.ImageURL, &b.Rating,
		&b.Address, &b.Architect, &b.Year, &b.CreatedAt,
	)
	return b, err
}
