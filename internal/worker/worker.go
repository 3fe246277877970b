// Package worker binds host commands to the campaign coordinator.
package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/OCAP2/awacs/internal/campaign"
	"github.com/OCAP2/awacs/internal/parser"
	"github.com/OCAP2/awacs/internal/storage"
	"github.com/OCAP2/awacs/pkg/core"
)

// ErrUnknownUnit is logged when an event names a unit the host never
// registered. The event is still recorded with SideUnknown.
var ErrUnknownUnit = errors.New("unknown unit")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Coordinator *campaign.Coordinator
	Parser      *parser.Parser
	Logger      *slog.Logger
	// Backend receives campaign lifecycle calls. Optional.
	Backend storage.Backend
	// Uploader sends the backend's exported file at campaign end. Optional.
	Uploader  Uploader
	UploadTag string
}

// Uploader ships an exported kill log, e.g. *api.Client.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// Manager translates dispatcher events into coordinator calls.
type Manager struct {
	deps Dependencies
	log  *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	return &Manager{
		deps: deps,
		log:  deps.Logger.With("component", "worker"),
	}
}

// LastWriteDuration returns the duration of the backend's last batch write.
// Returns 0 if the backend doesn't batch.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.deps.Backend.(storage.WriteTimer); ok {
		return p.LastWriteDuration()
	}
	return 0
}

// checkUnits warns about ids missing from the unit cache.
func (m *Manager) checkUnits(command string, ids ...core.EntityID) {
	units := m.deps.Coordinator.Units()
	for _, id := range ids {
		if _, ok := units.Get(id); !ok {
			m.log.Warn("Event references unregistered unit",
				"command", command, "id", id, "error", ErrUnknownUnit)
		}
	}
}
