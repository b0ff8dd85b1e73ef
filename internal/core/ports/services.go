package ports

import (
	"context"

	"github.com/samirrijal/archmap/internal/core/domain"
)

// ViewportEvent is emitted once per completed camera move of a map session.
type ViewportEvent struct {
	SessionID string        `json:"session_id"`
	Camera    domain.Camera `json:"camera"`
}

// MapClickEvent records a map click that was forwarded to the application
// (radius-center pick or entity placement).
type MapClickEvent struct {
	SessionID string          `json:"session_id"`
	Location  domain.GeoPoint `json:"location"`
	Mode      string          `json:"mode"` // "radius" | "add_entity"
}

// EventPublisher publishes map session events to a message broker.
type EventPublisher interface {
	PublishViewportChange(ctx context.Context, ev *ViewportEvent) error
	PublishMapClick(ctx context.Context, ev *MapClickEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
