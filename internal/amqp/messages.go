package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cassa/internal/core"
)

// LedgerEventMessage carries one committed ledger mutation to the worker.
type LedgerEventMessage struct {
	ID        string           `json:"id"`
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewLedgerEventMessage wraps e with a fresh message id.
func NewLedgerEventMessage(e core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        uuid.NewString(),
		Event:     e,
		Timestamp: time.Now().UTC(),
	}
}

// Type is the AMQP message type, e.g. "ledger.sale.create".
func (m *LedgerEventMessage) Type() string {
	return fmt.Sprintf("ledger.%s.%s", m.Event.Kind, m.Event.Op)
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes a message and rejects events the worker could not act on.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *LedgerEventMessage) validate() error {
	e := m.Event
	if e.BusinessID == "" {
		return errors.New("missing business id")
	}
	if e.RecordID == "" {
		return errors.New("missing record id")
	}
	if e.Kind != core.KindSale && e.Kind != core.KindExpense {
		return fmt.Errorf("unknown record kind %q", e.Kind)
	}
	switch e.Op {
	case core.OpCreate, core.OpUpdate, core.OpDelete:
	default:
		return fmt.Errorf("unknown operation %q", e.Op)
	}
	return nil
}
