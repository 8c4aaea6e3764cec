package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ledger operations carried by LedgerChangedMessage.
const (
	OperationAdd    = "add"
	OperationUpdate = "update"
	OperationRemove = "remove"
)

// LedgerChangedMessage announces that the persisted ledger under Key was
// rewritten. It carries no transaction data: consumers reload the ledger
// from storage.
type LedgerChangedMessage struct {
	Key       string    `json:"key"`
	Operation string    `json:"operation"`
	ID        int64     `json:"id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage stamps a change notification with the current time.
func NewLedgerChangedMessage(key, operation string, id int64, count int) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Key:       key,
		Operation: operation,
		ID:        id,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and checks the fields every
// consumer relies on.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, fmt.Errorf("ledger changed message: missing key")
	}
	switch msg.Operation {
	case OperationAdd, OperationUpdate, OperationRemove:
	default:
		return nil, fmt.Errorf("ledger changed message: unknown operation %q", msg.Operation)
	}
	return &msg, nil
}
