// Package publish forwards attributed kills to the stats pipeline over Kafka.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/OCAP2/awacs/pkg/core"
	"github.com/OCAP2/awacs/pkg/streaming"
)

const (
	DefaultTopic        = "campaign.kills"
	defaultWriteTimeout = 5 * time.Second
)

// Config holds the Kafka publisher settings.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KillEvent is the message value on the kills topic.
type KillEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	CampaignID string    `json:"campaign_id"`
	Timestamp  time.Time `json:"timestamp"`
	streaming.KillPayload
}

// Publisher writes one message per kill, keyed by victim id so a victim's
// kills stay on one partition.
type Publisher struct {
	w       messageWriter
	timeout time.Duration
}

// New creates a publisher for cfg.Brokers.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return newPublisher(w, cfg.WriteTimeout), nil
}

func newPublisher(w messageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Publisher{w: w, timeout: timeout}
}

// RecordKill publishes k. It satisfies campaign.KillSink.
func (p *Publisher) RecordKill(k *core.KillRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.Publish(ctx, k)
}

// Publish writes k to the topic.
func (p *Publisher) Publish(ctx context.Context, k *core.KillRecord) error {
	if k.VictimID == "" {
		return errors.New("kafka: kill record missing victim id")
	}
	event := KillEvent{
		EventID:     k.ID.String(),
		EventType:   streaming.TypeKillRecord,
		CampaignID:  k.CampaignID.String(),
		Timestamp:   k.Time,
		KillPayload: streaming.NewKillPayload(k),
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal kill event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.VictimID),
		Value: msg,
		Time:  k.Time,
	}); err != nil {
		return fmt.Errorf("publish kill %s: %w", k.VictimID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
