package amqp

import (
	"encoding/json"
	"time"
)

// Event types published on the activity exchange.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventSettingsUpdated    = "settings.updated"
)

// ActivityEvent is a lightweight message describing a ledger or settings
// change. The worker fetches full records from the database when needed.
type ActivityEvent struct {
	Type          string    `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewActivityEvent creates an event stamped with the current time.
func NewActivityEvent(eventType string, transactionID int64, detail string) *ActivityEvent {
	return &ActivityEvent{
		Type:          eventType,
		TransactionID: transactionID,
		Detail:        detail,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ActivityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ActivityEventFromJSON creates an event from JSON bytes
func ActivityEventFromJSON(data []byte) (*ActivityEvent, error) {
	var e ActivityEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
