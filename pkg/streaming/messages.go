// Package streaming defines the wire messages the websocket backend sends
// to a live kill-feed server.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/awacs/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartCampaign = "start_campaign"
	TypeEndCampaign   = "end_campaign"
	TypeKillRecord    = "kill_record"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartCampaignPayload announces the campaign the following kills belong to.
type StartCampaignPayload struct {
	Campaign *core.Campaign `json:"campaign"`
}

// KillPayload carries one kill record plus its resolved killer.
type KillPayload struct {
	Kill   *core.KillRecord `json:"kill"`
	Killer *core.Shot       `json:"killer,omitempty"`
}

// NewKillPayload builds the payload for k.
func NewKillPayload(k *core.KillRecord) KillPayload {
	p := KillPayload{Kill: k}
	if shot, ok := k.Killer(); ok {
		p.Killer = &shot
	}
	return p
}
