// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"time"

	"github.com/OCAP2/awacs/internal/database"
	gormstorage "github.com/OCAP2/awacs/internal/storage/gorm"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds the Postgres connection settings.
type Config struct {
	DSN           string
	FlushInterval time.Duration
}

// Backend connects to Postgres on Init and writes through the GORM backend.
type Backend struct {
	*gormstorage.Backend
}

// New creates a Postgres backend. The connection is opened by Init.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Open: func() (*gorm.DB, error) {
				db, err := database.GetPostgresDB(cfg.DSN, log)
				if err != nil {
					return nil, fmt.Errorf("failed to connect to postgres: %w", err)
				}
				return db, nil
			},
			Logger: log,
		}, gormstorage.Config{FlushInterval: cfg.FlushInterval}),
	}
}
