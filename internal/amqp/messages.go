package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operations carried by a TransactionEvent.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionEvent is a lightweight change notification for the backup
// worker. It carries only the transaction id and the operation; the
// worker fetches the current row from storage when mirroring, so stale
// duplicate events are harmless.
type TransactionEvent struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event for the given id and operation.
func NewTransactionEvent(id int64, op string) *TransactionEvent {
	return &TransactionEvent{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// Validate checks the event carries a known operation and a real id.
func (e *TransactionEvent) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("invalid transaction id %d", e.ID)
	}
	if e.Op != OpUpsert && e.Op != OpDelete {
		return fmt.Errorf("unknown operation %q", e.Op)
	}
	return nil
}

// ToJSON converts the event to JSON bytes.
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON parses an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal transaction event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
