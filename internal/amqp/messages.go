package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashbook/internal/core"
)

// SchemaVersion is bumped when ChangeMessage changes incompatibly.
const SchemaVersion = 1

// ChangeMessage is the wire form of a core.ChangeEvent.
type ChangeMessage struct {
	Version     int              `json:"version"`
	Op          core.ChangeOp    `json:"op"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewChangeMessage wraps ev for publishing. A zero event time is replaced
// with the current time.
func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return &ChangeMessage{
		Version:     SchemaVersion,
		Op:          ev.Op,
		Transaction: ev.Transaction,
		Timestamp:   at.UTC(),
	}
}

// Event converts the message back into a core.ChangeEvent.
func (m *ChangeMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{Op: m.Op, Transaction: m.Transaction, At: m.Timestamp}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and checks a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != SchemaVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	switch msg.Op {
	case core.OpCreated, core.OpUpdated, core.OpDeleted:
	default:
		return nil, fmt.Errorf("unknown change op %q", msg.Op)
	}
	if msg.Transaction.ID.IsZero() {
		return nil, fmt.Errorf("change message without transaction id")
	}
	return &msg, nil
}
