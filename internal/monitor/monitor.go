// Package monitor samples the coordinator on an interval and publishes the
// snapshot to a status file and the configured performance sinks.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/OCAP2/awacs/internal/campaign"
	"github.com/OCAP2/awacs/internal/model"
	"github.com/OCAP2/awacs/internal/storage"
)

// PerformanceWriter receives each snapshot, e.g. the influx manager.
type PerformanceWriter interface {
	WritePerformance(perf model.Performance) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Coordinator *campaign.Coordinator
	// WriteTimer reports the storage backend's last batch duration. Optional.
	WriteTimer storage.WriteTimer
	// DB receives a performances row per sample. Optional.
	DB      *gorm.DB
	Writers []PerformanceWriter
	Logger  *slog.Logger
	// StatusFile is rewritten on every sample; empty disables it.
	StatusFile string
	Interval  time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot converts the coordinator stats into a performance row plus the
// human-readable status lines.
func (s *Service) Snapshot(now time.Time) (output []string, perf model.Performance) {
	st := s.deps.Coordinator.Stats()

	perf = model.Performance{
		Time:              now,
		Ticks:             st.Ticks,
		Units:             st.Units,
		VisibilityEntries: st.Visibility.Entries,
		VisibilityHits:    st.Visibility.Hits,
		VisibilityMisses:  st.Visibility.Misses,
		VisibilityEvicted: st.Visibility.Evicted,
		PendingShots:      st.Ledger.Shots,
		PendingDeaths:     st.Ledger.Deaths,
		BufferedSensors:   st.BufferedSensors,
		BufferedTargets:   st.BufferedTargets,
	}
	if cp := s.deps.Coordinator.Campaign(); cp != nil {
		perf.CampaignID = cp.ID
	}
	for _, n := range st.Tracks {
		perf.Tracks += n
	}
	if s.deps.WriteTimer != nil {
		perf.LastWriteDurationMs = float32(s.deps.WriteTimer.LastWriteDuration().Microseconds()) / 1000
	}

	output = append(output, fmt.Sprintf("campaign: %s", st.Campaign))
	statsStr, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		statsStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(statsStr))
	output = append(output, fmt.Sprintf("last write: %.1fms", perf.LastWriteDurationMs))

	return output, perf
}

// sample takes one snapshot and fans it out.
func (s *Service) sample(statusFile *os.File) {
	if s.deps.Coordinator.Campaign() == nil {
		return
	}
	lines, perf := s.Snapshot(time.Now())

	if statusFile != nil {
		if err := writeStatus(statusFile, lines); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			s.deps.Logger.Error("Error writing performance row", "error", err)
		}
	}
	for _, w := range s.deps.Writers {
		if err := w.WritePerformance(perf); err != nil {
			s.deps.Logger.Error("Error writing performance point", "error", err)
		}
	}
}

func writeStatus(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(strings.Join(lines, "\n") + "\n")
	return err
}

// ValidateHypertables converts the given tables to TimescaleDB hypertables
// with compression segmented by the listed columns.
func (s *Service) ValidateHypertables(tables map[string][]string) error {
	logger := s.deps.Logger.With("function", "validateHypertables")

	for table, segmentBy := range tables {
		var count int64
		err := s.deps.DB.Raw(
			`SELECT count(*) FROM timescaledb_information.hypertables WHERE hypertable_name = ?`, table,
		).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("query hypertables: %w", err)
		}
		if count > 0 {
			logger.Info("Table is already configured", "table", table)
			continue
		}

		err = s.deps.DB.Exec(fmt.Sprintf(
			`SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true);`,
			table)).Error
		if err != nil {
			logger.Error("Failed to create hypertable", "table", table, "error", err)
			return err
		}

		err = s.deps.DB.Exec(fmt.Sprintf(
			`ALTER TABLE %s SET (timescaledb.compress, timescaledb.compress_segmentby = '%s');`,
			table, strings.Join(segmentBy, ","))).Error
		if err != nil {
			logger.Error("Failed to enable compression", "table", table, "error", err)
			return err
		}

		err = s.deps.DB.Exec(fmt.Sprintf(
			`SELECT add_compression_policy('%s', compress_after => interval '14 day');`,
			table)).Error
		if err != nil {
			logger.Error("Failed to set compress_after", "table", table, "error", err)
			return err
		}
		logger.Info("Created hypertable", "table", table)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if statusFile != nil {
			defer statusFile.Close()
		}
		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.sample(statusFile)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}
