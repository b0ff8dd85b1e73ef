package ports

import (
	"context"

	"github.com/samirrijal/archmap/internal/core/domain"
)

// BuildingRepository persists buildings.
type BuildingRepository interface {
	Upsert(ctx context.Context, b *domain.Building) error
	UpsertBatch(ctx context.Context, bs []domain.Building) error
	GetByID(ctx context.Context, id string) (*domain.Building, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Building, error)
	List(ctx context.Context) ([]domain.Building, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Building, error)
}

// RouteRepository persists routes.
type RouteRepository interface {
	Upsert(ctx context.Context, route *domain.Route) error
	UpsertBatch(ctx context.Context, routes []domain.Route) error
	GetByID(ctx context.Context, id string) (*domain.Route, error)
	List(ctx context.Context) ([]domain.Route, error)
	ListByBuilding(ctx context.Context, buildingID string) ([]domain.Route, error)
}
