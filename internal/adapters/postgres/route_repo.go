package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

const routeColumns = `id, name, transport_mode, COALESCE(geometry, ''), building_ids, created_at`

// RouteRepo implements ports.RouteRepository. Geometry is stored as an
// encoded polyline (precision 5).
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo { return &RouteRepo{db: db} }

const upsertRoute = `
	INSERT INTO routes (id, name, transport_mode, geometry, building_ids, distance_km)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, transport_mode = EXCLUDED.transport_mode,
	    geometry = EXCLUDED.geometry, building_ids = EXCLUDED.building_ids,
	    distance_km = EXCLUDED.distance_km
`

func (r *RouteRepo) Upsert(ctx context.Context, route *domain.Route) error {
	_, err := r.db.Pool.Exec(ctx, upsertRoute, routeArgs(route)...)
	return err
}

func (r *RouteRepo) UpsertBatch(ctx context.Context, routes []domain.Route) error {
	batch := &pgx.Batch{}
	for i := range routes {
		batch.Queue(upsertRoute, routeArgs(&routes[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range routes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func routeArgs(route *domain.Route) []any {
	ids := route.BuildingIDs
	if ids == nil {
		ids = []string{}
	}
	return []any{
		route.ID, route.Name, string(route.TransportMode),
		EncodeGeometry(route.Geometry), ids, RouteDistanceKm(route.Geometry),
	}
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id)
	rt, err := scanRoute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *RouteRepo) List(ctx context.Context) ([]domain.Route, error) {
	return r.query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY name`)
}

// ListByBuilding returns the routes that pass through a building.
func (r *RouteRepo) ListByBuilding(ctx context.Context, buildingID string) ([]domain.Route, error) {
	return r.query(ctx, `
		SELECT `+routeColumns+`
		FROM routes WHERE $1 = ANY(building_ids)
		ORDER BY name
	`, buildingID)
}

func (r *RouteRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Route, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func scanRoute(row pgx.Row) (domain.Route, error) {
	var (
		rt      domain.Route
		mode    string
		encoded string
	)
	if err := row.Scan(&rt.ID, &rt.Name, &mode, &encoded, &rt.BuildingIDs, &rt.CreatedAt); err != nil {
		return rt, err
	}
	rt.TransportMode = domain.TransportMode(mode)
	geom, err := DecodeGeometry(encoded)
	if err != nil {
		return rt, fmt.Errorf("route %s geometry: %w", rt.ID, err)
	}
	rt.Geometry = geom
	rt.DistanceKm = RouteDistanceKm(geom)
	return rt, nil
}

// EncodeGeometry returns the polyline encoding of g, or "" for no geometry.
func EncodeGeometry(g *domain.GeoLineString) string {
	if g == nil || len(g.Coordinates) == 0 {
		return ""
	}
	coords := make([][]float64, len(g.Coordinates))
	for i, p := range g.Coordinates {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodeGeometry parses an encoded polyline. "" decodes to nil.
func DecodeGeometry(s string) (*domain.GeoLineString, error) {
	if s == "" {
		return nil, nil
	}
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(rest))
	}
	g := &domain.GeoLineString{Coordinates: make([]domain.GeoPoint, len(coords))}
	for i, c := range coords {
		g.Coordinates[i] = domain.GeoPoint{Lat: c[0], Lon: c[1]}
	}
	return g, nil
}

// RouteDistanceKm is the length of g along the earth's surface.
func RouteDistanceKm(g *domain.GeoLineString) float64 {
	if g == nil {
		return 0
	}
	lats := make([]float64, len(g.Coordinates))
	lons := make([]float64, len(g.Coordinates))
	for i, p := range g.Coordinates {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	return geospatial.LineLengthKm(lats, lons)
}
