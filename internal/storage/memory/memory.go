// internal/storage/memory/memory.go
package memory

import (
	"slices"
	"sync"

	"github.com/OCAP2/awacs/internal/config"
	"github.com/OCAP2/awacs/pkg/core"
)

// Backend keeps the campaign's kills in memory and exports them to JSON
// when the campaign ends.
type Backend struct {
	cfg      config.MemoryConfig
	campaign *core.Campaign
	kills    []core.KillRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartCampaign begins recording a new campaign
func (b *Backend) StartCampaign(c *core.Campaign) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.campaign = c
	b.kills = nil
	b.lastExportPath = ""
	return nil
}

// EndCampaign exports the campaign's kills. Without a running campaign
// there is nothing to write.
func (b *Backend) EndCampaign() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.campaign == nil {
		return nil
	}
	err := b.exportJSON()
	b.campaign = nil
	return err
}

// RecordKill stores a copy of the record.
func (b *Backend) RecordKill(k *core.KillRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := *k
	rec.Shots = slices.Clone(k.Shots)
	b.kills = append(b.kills, rec)
	return nil
}

// Kills returns the kills recorded since the campaign started.
func (b *Backend) Kills() []core.KillRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.kills)
}

// ExportedFilePath returns the file written by the last EndCampaign.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
