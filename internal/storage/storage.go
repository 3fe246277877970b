// Package storage defines the kill-log backends a campaign writes to.
package storage

import (
	"time"

	"github.com/OCAP2/awacs/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// RecordKill makes every backend a campaign kill sink.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Campaign management
	StartCampaign(c *core.Campaign) error
	EndCampaign() error

	RecordKill(k *core.KillRecord) error
}

// Exporter is an optional interface for backends that write a file at
// campaign end.
type Exporter interface {
	ExportedFilePath() string
}

// WriteTimer is an optional interface for backends that batch writes and
// can report how long the last batch took.
type WriteTimer interface {
	LastWriteDuration() time.Duration
}
