//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/samirrijal/archmap/internal/adapters/http"
	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/usecases"
	"github.com/samirrijal/archmap/internal/pkg/config"
)

// setupTestDB connects to the test database. The schema must already be
// migrated (cmd/migrate up).
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("archmap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with real repos and no cache.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	return &handler.Dependencies{
		Buildings: usecases.NewBuildingService(postgres.NewBuildingRepo(db), nil),
		Routes:    usecases.NewRouteService(postgres.NewRouteRepo(db), nil),
		DB:        db,
	}
}

func seedBuilding(t *testing.T, db *postgres.DB, id, name string, lat, lon float64) {
	b := &domain.Building{ID: id, Name: name, Location: domain.GeoPoint{Lat: lat, Lon: lon}, Rating: 4}
	if err := postgres.NewBuildingRepo(db).Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed building: %v", err)
	}
}

func TestListBuildings_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedBuilding(t, db, "itest-reichstag", "Reichstag", 52.5186, 13.3762)
	seedBuilding(t, db, "itest-philharmonie", "Philharmonie", 52.5098, 13.3700)

	app := setupApp(setupTestDeps(db))
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/buildings", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Building   `json:"data"`
		Pagination struct{ Total int } `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Pagination.Total < 2 {
		t.Errorf("expected at least 2 buildings, got %d", result.Pagination.Total)
	}
}

func TestNearbyBuildings_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedBuilding(t, db, "itest-tvtower", "Fernsehturm", 52.5208, 13.4094)

	app := setupApp(setupTestDeps(db))
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/buildings/nearby?lat=52.5200&lon=13.4050&radius_km=2", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var buildings []domain.Building
	if err := json.NewDecoder(resp.Body).Decode(&buildings); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, b := range buildings {
		if b.ID == "itest-tvtower" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected itest-tvtower within 2 km, got %d buildings", len(buildings))
	}
}

func TestRouteGeometry_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	route := routeWithGeometry()
	route.ID = "itest-route"
	if err := postgres.NewRouteRepo(db).Upsert(context.Background(), route); err != nil {
		t.Fatalf("seed route: %v", err)
	}

	app := setupApp(setupTestDeps(db))
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/routes/itest-route", nil), -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got domain.Route
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.HasGeometry() || len(got.Geometry.Coordinates) != 3 {
		t.Fatalf("expected 3 decoded coordinates, got %+v", got.Geometry)
	}
	if got.DistanceKm <= 0 {
		t.Errorf("expected derived distance, got %f", got.DistanceKm)
	}
}
