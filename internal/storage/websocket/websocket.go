// Package websocket streams the kill log to a live feed server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/awacs/pkg/core"
	"github.com/OCAP2/awacs/pkg/streaming"
)

const defaultAckTimeout = 10 * time.Second

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// Backend streams campaign boundaries and kill records over a websocket.
// Campaign boundaries wait for a server ack; kills are fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped reports messages lost to a full queue or a broken connection.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// Reconnects reports how many times the connection was re-established.
func (b *Backend) Reconnects() uint64 {
	return b.conn.reconnects.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartCampaign announces the campaign and waits for the server ack.
func (b *Backend) StartCampaign(c *core.Campaign) error {
	data, err := marshalEnvelope(streaming.TypeStartCampaign, streaming.StartCampaignPayload{Campaign: c})
	if err != nil {
		return err
	}
	b.conn.setStartMessage(data)
	return b.conn.sendAndWait(data, streaming.TypeStartCampaign, b.cfg.AckTimeout)
}

// EndCampaign sends end_campaign and waits for the server ack.
func (b *Backend) EndCampaign() error {
	data, err := marshalEnvelope(streaming.TypeEndCampaign, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndCampaign, b.cfg.AckTimeout)
	b.conn.setStartMessage(nil)
	return err
}

// RecordKill queues the kill for sending.
func (b *Backend) RecordKill(k *core.KillRecord) error {
	data, err := marshalEnvelope(streaming.TypeKillRecord, streaming.NewKillPayload(k))
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}
