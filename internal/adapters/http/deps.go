package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/adapters/valkey"
	"github.com/samirrijal/murmur/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Density *usecases.DensityService
	Paths   *usecases.PathService
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   *valkey.Cache
	// Location is the zone daily paths are cut in. Nil means UTC.
	Location *time.Location
}
