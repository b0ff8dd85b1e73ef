package http

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/archmap/internal/adapters/nats"
	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/adapters/valkey"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/core/ports"
	"github.com/samirrijal/archmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Buildings  *usecases.BuildingService
	Routes     *usecases.RouteService
	Events     ports.EventPublisher // nil disables session events
	Subscriber *natsadapter.Subscriber
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
	Map        mapview.Config
	MaxZoom    float64
	Logger     *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
