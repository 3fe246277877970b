package worker

import (
	"fmt"
	"time"

	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/dispatcher"
	"github.com/OCAP2/awacs/internal/storage"
	"github.com/OCAP2/awacs/pkg/core"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Unit metadata - sync (shots need the sides before they arrive)
	d.Register(":NEW:UNIT:", m.handleNewUnit, dispatcher.Logged())

	// Per-tick frame - sync, :TICK: must see every record sent before it
	d.Register(":SENSOR:", m.handleSensor)
	d.Register(":AIR:", m.handleAir)
	d.Register(":TICK:", m.handleTick, dispatcher.Logged())

	// Weapon events - sync, a kill must follow its hits into the ledger
	d.Register(":FIRED:", m.handleFired, dispatcher.Logged())
	d.Register(":HIT:", m.handleHit, dispatcher.Logged())
	d.Register(":KILLED:", m.handleKilled, dispatcher.Logged())

	// Draining writes to sinks - buffered, never dropped
	d.Register(":DRAIN:", m.handleDrain, dispatcher.Buffered(64), dispatcher.Blocking(), dispatcher.Logged())

	// Observer requests - sync, the host waits for the reply
	d.Register(":REPORT:", m.handleReport, dispatcher.Logged())
	d.Register(":REPORTS:TOGGLE:", m.handleToggle, dispatcher.Logged())
	d.Register(":REPORTS:UNITS:", m.handleUnits, dispatcher.Logged())

	// Lifecycle
	d.Register(":CAMPAIGN:START:", m.handleCampaignStart, dispatcher.Logged())
	d.Register(":CAMPAIGN:END:", m.handleCampaignEnd, dispatcher.Logged())
	d.Register(":STATUS:", m.handleStatus)
}

// eventTime reads an optional leading time argument, falling back to the
// event timestamp.
func (m *Manager) eventTime(e dispatcher.Event) (time.Time, error) {
	if len(e.Args) == 0 {
		return e.Timestamp, nil
	}
	return m.deps.Parser.ParseTime(e.Args)
}

func (m *Manager) handleNewUnit(e dispatcher.Event) (any, error) {
	u, err := m.deps.Parser.ParseUnit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to register unit: %w", err)
	}
	m.deps.Coordinator.RegisterUnit(u)
	return nil, nil
}

func (m *Manager) handleSensor(e dispatcher.Event) (any, error) {
	s, err := m.deps.Parser.ParseSensor(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer sensor: %w", err)
	}
	m.deps.Coordinator.AddSensor(s)
	return nil, nil
}

func (m *Manager) handleAir(e dispatcher.Event) (any, error) {
	t, err := m.deps.Parser.ParseAir(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer target: %w", err)
	}
	m.deps.Coordinator.AddTarget(t)
	return nil, nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	now, err := m.deps.Parser.ParseTime(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to run tick: %w", err)
	}
	return m.deps.Coordinator.Tick(now), nil
}

func (m *Manager) handleFired(e dispatcher.Event) (any, error) {
	s, err := m.deps.Parser.ParseShot(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log shot: %w", err)
	}
	m.checkUnits(e.Command, s.ShooterID, s.TargetID)
	m.deps.Coordinator.RecordShot(s.Time, s.ShooterID, s.TargetID, s.Weapon)
	return nil, nil
}

func (m *Manager) handleHit(e dispatcher.Event) (any, error) {
	h, err := m.deps.Parser.ParseHit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log hit: %w", err)
	}
	m.checkUnits(e.Command, h.ShooterID, h.TargetID)
	m.deps.Coordinator.RecordHit(h.Time, h.ShooterID, h.TargetID, h.Weapon, h.Lethal)
	return nil, nil
}

func (m *Manager) handleKilled(e dispatcher.Event) (any, error) {
	d, err := m.deps.Parser.ParseDeath(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log death: %w", err)
	}
	m.checkUnits(e.Command, d.TargetID)
	return m.deps.Coordinator.RecordDeath(d.Time, d.TargetID), nil
}

func (m *Manager) handleDrain(e dispatcher.Event) (any, error) {
	now, err := m.eventTime(e)
	if err != nil {
		return nil, fmt.Errorf("failed to drain: %w", err)
	}
	records, err := m.deps.Coordinator.Drain(now)
	return len(records), err
}

func (m *Manager) handleReport(e dispatcher.Event) (any, error) {
	r, err := m.deps.Parser.ParseReport(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	braa := m.deps.Coordinator.Report(r.Time, r.Friendly, r.ObserverID, r.Side, r.Position)
	lines := make([]string, 0, len(braa))
	for _, l := range braa {
		lines = append(lines, contact.FormatLine(l))
	}
	return lines, nil
}

func (m *Manager) handleToggle(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseObserver(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle reports: %w", err)
	}
	return m.deps.Coordinator.Toggle(id), nil
}

func (m *Manager) handleUnits(e dispatcher.Event) (any, error) {
	u, err := m.deps.Parser.ParseUnits(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set units: %w", err)
	}
	m.deps.Coordinator.SetUnits(u.ObserverID, u.Units)
	return nil, nil
}

func (m *Manager) handleCampaignStart(e dispatcher.Event) (any, error) {
	c, err := m.deps.Parser.ParseCampaign(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to start campaign: %w", err)
	}

	if prev := m.deps.Coordinator.Campaign(); prev != nil {
		m.log.Warn("Campaign already running, ending it first", "name", prev.Name)
		if _, err := m.endCampaign(e.Timestamp); err != nil {
			m.log.Error("Failed to end previous campaign", "error", err)
		}
	}

	c.StartTime = e.Timestamp
	if err := m.deps.Coordinator.StartCampaign(&c); err != nil {
		return nil, fmt.Errorf("failed to start campaign: %w", err)
	}
	if m.deps.Backend != nil {
		if err := m.deps.Backend.StartCampaign(&c); err != nil {
			return nil, fmt.Errorf("failed to start campaign in storage: %w", err)
		}
	}
	return c.ID.String(), nil
}

func (m *Manager) handleCampaignEnd(e dispatcher.Event) (any, error) {
	now, err := m.eventTime(e)
	if err != nil {
		return nil, fmt.Errorf("failed to end campaign: %w", err)
	}
	return m.endCampaign(now)
}

// endCampaign drains the coordinator into the sinks before the backend
// closes the campaign, so the final kills land in it.
func (m *Manager) endCampaign(now time.Time) (int, error) {
	cp := m.deps.Coordinator.Campaign()
	if cp == nil {
		return 0, nil
	}
	records, drainErr := m.deps.Coordinator.EndCampaign(now)
	if m.deps.Backend != nil {
		if err := m.deps.Backend.EndCampaign(); err != nil {
			return len(records), fmt.Errorf("failed to end campaign in storage: %w", err)
		}
		m.upload(cp, now)
	}
	return len(records), drainErr
}

// upload sends the export to the stats server. Failures are logged; the
// file stays on disk.
func (m *Manager) upload(cp *core.Campaign, now time.Time) {
	exp, ok := m.deps.Backend.(storage.Exporter)
	if !ok || m.deps.Uploader == nil || exp.ExportedFilePath() == "" {
		return
	}
	path := exp.ExportedFilePath()
	meta := core.UploadMetadata{
		CampaignName: cp.Name,
		Theatre:      cp.Theatre,
		Duration:     max(now.Sub(cp.StartTime).Seconds(), 0),
		Tag:          m.deps.UploadTag,
	}
	if err := m.deps.Uploader.Upload(path, meta); err != nil {
		m.log.Error("Failed to upload kill log", "path", path, "error", err)
		return
	}
	m.log.Info("Kill log uploaded", "path", path)
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	return m.deps.Coordinator.Stats(), nil
}
