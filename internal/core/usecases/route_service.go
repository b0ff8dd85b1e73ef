package usecases

import (
	"context"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/ports"
)

// RouteService handles route-related business logic.
type RouteService struct {
	routes ports.RouteRepository
	cache  ports.CacheService
}

// NewRouteService creates a new RouteService.
func NewRouteService(routes ports.RouteRepository, cache ports.CacheService) *RouteService {
	return &RouteService{routes: routes, cache: cache}
}

// GetByID returns a route by its ID.
func (s *RouteService) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var rt domain.Route
	cacheKey := "routes:id:" + id
	if readThrough(ctx, s.cache, "route", cacheKey, &rt) {
		return &rt, nil
	}

	found, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	writeThrough(ctx, s.cache, cacheKey, found, 600)
	return found, nil
}

// List returns all routes.
func (s *RouteService) List(ctx context.Context) ([]domain.Route, error) {
	return s.routes.List(ctx)
}

// ListByBuilding returns the routes that pass through a given building.
func (s *RouteService) ListByBuilding(ctx context.Context, buildingID string) ([]domain.Route, error) {
	return s.routes.ListByBuilding(ctx, buildingID)
}
