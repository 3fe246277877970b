// Package gormstorage writes the kill log through GORM. Kills are queued and
// written in batches by a background goroutine; campaign rows are written
// synchronously.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/awacs/internal/database"
	"github.com/OCAP2/awacs/internal/geo"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/internal/model/convert"
	"github.com/OCAP2/awacs/internal/queue"
	"github.com/OCAP2/awacs/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultQueueLimit    = 100_000
	batchSize            = 500
)

// ErrQueueFull is returned when the write queue cannot take another kill.
var ErrQueueFull = errors.New("kill write queue full")

// Dependencies holds the database handle or a way to open one.
type Dependencies struct {
	DB *gorm.DB
	// Open is called by Init when DB is nil.
	Open   func() (*gorm.DB, error)
	Logger zerolog.Logger
}

// Config tunes the batch writer.
type Config struct {
	FlushInterval time.Duration
	QueueLimit    int
}

// Backend implements storage.Backend on a GORM database.
type Backend struct {
	deps  Dependencies
	cfg   Config
	kills *queue.Queue[model.KillRecord]

	mu       sync.RWMutex
	campaign *core.Campaign
	proj     geo.Projector

	lastWrite atomic.Int64
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a GORM backend. Nothing touches the database until Init.
func New(deps Dependencies, cfg Config) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = defaultQueueLimit
	}
	proj, _ := convert.ProjectorFor(nil)
	return &Backend{
		deps:     deps,
		cfg:      cfg,
		kills:    queue.New[model.KillRecord](cfg.QueueLimit),
		proj:     proj,
		stopChan: make(chan struct{}),
	}
}

// DB returns the database handle, nil before Init.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init opens the database if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Open == nil {
			return errors.New("no database configured")
		}
		db, err := b.deps.Open()
		if err != nil {
			return err
		}
		b.deps.DB = db
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes whatever is still queued.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if b.deps.DB == nil {
		return nil
	}
	return b.Flush()
}

// StartCampaign inserts the campaign row and anchors kill positions at its theatre.
func (b *Backend) StartCampaign(c *core.Campaign) error {
	proj, err := convert.ProjectorFor(c)
	if err != nil {
		return err
	}
	row, err := convert.CoreToCampaign(*c)
	if err != nil {
		return err
	}
	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert campaign: %w", err)
		}
	}

	b.mu.Lock()
	b.campaign = c
	b.proj = proj
	b.mu.Unlock()
	return nil
}

// EndCampaign flushes queued kills and stamps the campaign's end time.
func (b *Backend) EndCampaign() error {
	b.mu.Lock()
	c := b.campaign
	b.campaign = nil
	b.mu.Unlock()

	if b.deps.DB == nil {
		return nil
	}
	err := b.Flush()
	if c != nil {
		if uerr := b.deps.DB.Model(&model.Campaign{}).
			Where("id = ?", c.ID).
			Update("end_time", convert.EndTime(time.Now())).Error; uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close campaign: %w", uerr))
		}
	}
	return err
}

// RecordKill converts and queues a kill.
func (b *Backend) RecordKill(k *core.KillRecord) error {
	b.mu.RLock()
	proj := b.proj
	b.mu.RUnlock()

	row, err := convert.CoreToKillRecord(*k, proj)
	if err != nil {
		return err
	}
	if dropped := b.kills.Push(row); dropped > 0 {
		return ErrQueueFull
	}
	return nil
}

// Pending returns the number of queued kills.
func (b *Backend) Pending() int {
	return b.kills.Len()
}

// LastWriteDuration returns how long the last batch write took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes every queued kill in one transaction. On failure the rows go
// back on the queue.
func (b *Backend) Flush() error {
	items := b.kills.Drain()
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&items, batchSize).Error
	})
	if err != nil {
		b.kills.Push(items...)
		return fmt.Errorf("error creating kill records: %w", err)
	}
	b.lastWrite.Store(int64(time.Since(start)))
	b.deps.Logger.Debug().Int("count", len(items)).Dur("duration", time.Since(start)).Msg("Wrote kill records")
	return nil
}

// writeLoop periodically drains the queue into the database.
func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("DB writer failed")
			}
		}
	}
}
