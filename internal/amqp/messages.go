package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

type EventKind string

const (
	EventTransactionAdded   EventKind = "transaction_added"
	EventTransactionRemoved EventKind = "transaction_removed"
	EventLedgerReplaced     EventKind = "ledger_replaced"
	EventCategoriesChanged  EventKind = "categories_changed"
)

// LedgerEvent announces a committed ledger mutation. It carries no ledger
// data: consumers re-read the snapshot from the shared store.
type LedgerEvent struct {
	Kind          EventKind `json:"kind"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Revision      uint64    `json:"revision"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, txID int64, revision uint64) *LedgerEvent {
	return &LedgerEvent{
		Kind:          kind,
		TransactionID: txID,
		Revision:      revision,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event. A message without a kind is rejected.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("ledger event without kind")
	}
	return &msg, nil
}
