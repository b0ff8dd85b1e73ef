package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/ports"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
)

// ErrInvalidBuilding is returned by Create for a building that cannot be placed.
var ErrInvalidBuilding = errors.New("invalid building")

// BuildingService handles building-related business logic.
type BuildingService struct {
	buildings ports.BuildingRepository
	cache     ports.CacheService
}

// NewBuildingService creates a new BuildingService.
func NewBuildingService(buildings ports.BuildingRepository, cache ports.CacheService) *BuildingService {
	return &BuildingService{buildings: buildings, cache: cache}
}

// List returns every building. The map replaces its collection wholesale with
// this result on each refresh.
func (s *BuildingService) List(ctx context.Context) ([]domain.Building, error) {
	var buildings []domain.Building
	if s.cacheGet(ctx, "list", "buildings:all", &buildings) {
		return buildings, nil
	}

	buildings, err := s.buildings.List(ctx)
	if err != nil {
		return nil, err
	}

	// Short TTL: newly placed buildings should show up quickly
	s.cacheSet(ctx, "buildings:all", buildings, 60)
	return buildings, nil
}

// FindNearby returns buildings within radiusKm of the given point. This is the
// server side of the radius filter that the map visualises as a circle.
func (s *BuildingService) FindNearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]domain.Building, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %.2f", radiusKm)
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var buildings []domain.Building
	cacheKey := fmt.Sprintf("buildings:nearby:%.4f:%.4f:%.2f:%d", lat, lon, radiusKm, limit)
	if s.cacheGet(ctx, "nearby", cacheKey, &buildings) {
		return buildings, nil
	}

	buildings, err := s.buildings.FindNearby(ctx, lat, lon, radiusKm*1000, limit)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, buildings, 300)
	return buildings, nil
}

// GetByID returns a single building.
func (s *BuildingService) GetByID(ctx context.Context, id string) (*domain.Building, error) {
	var b domain.Building
	cacheKey := "buildings:id:" + id
	if s.cacheGet(ctx, "get", cacheKey, &b) {
		return &b, nil
	}

	found, err := s.buildings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, found, 600)
	return found, nil
}

// Create stores a building placed on the map and drops the cached list so the
// next refresh includes it.
func (s *BuildingService) Create(ctx context.Context, b *domain.Building) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBuilding)
	}
	if !b.Location.Valid() {
		return fmt.Errorf("%w: location %.5f,%.5f out of range", ErrInvalidBuilding, b.Location.Lat, b.Location.Lon)
	}
	if b.Rating < 0 || b.Rating > 5 {
		return fmt.Errorf("%w: rating must be in [0, 5]", ErrInvalidBuilding)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	if err := s.buildings.Upsert(ctx, b); err != nil {
		return fmt.Errorf("create building: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "buildings:all")
	}
	return nil
}

// GetByIDs returns multiple buildings by their IDs.
func (s *BuildingService) GetByIDs(ctx context.Context, ids []string) ([]domain.Building, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.buildings.GetByIDs(ctx, ids)
}

func (s *BuildingService) cacheGet(ctx context.Context, op, key string, dst any) bool {
	return readThrough(ctx, s.cache, op, key, dst)
}

func (s *BuildingService) cacheSet(ctx context.Context, key string, v any, ttl int) {
	writeThrough(ctx, s.cache, key, v, ttl)
}

// readThrough decodes a cached JSON value into dst and records the hit or miss.
func readThrough(ctx context.Context, cache ports.CacheService, op, key string, dst any) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func writeThrough(ctx context.Context, cache ports.CacheService, key string, v any, ttl int) {
	if cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = cache.Set(ctx, key, data, ttl)
	}
}
