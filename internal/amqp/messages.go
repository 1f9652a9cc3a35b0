package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event types.
const (
	EventAccountCreated = "account_created"
	EventAccountUpdated = "account_updated"
	EventAccountDeleted = "account_deleted"
	EventEntryAdded     = "entry_added"
	EventEntryUpdated   = "entry_updated"
	EventEntryDeleted   = "entry_deleted"
	EventTotalRepaired  = "total_repaired"
)

// LedgerEventMessage announces a committed change to a goal or a debt.
// It is lightweight: consumers reload the account from the database.
type LedgerEventMessage struct {
	Type      string    `json:"type"`
	OwnerID   string    `json:"owner_id"`
	AccountID string    `json:"account_id"`
	Kind      string    `json:"kind"`
	EntryID   string    `json:"entry_id,omitempty"`
	Total     string    `json:"total"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage stamps an event with the current time.
func NewLedgerEventMessage(eventType, ownerID, kind, accountID string, version int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Type:      eventType,
		OwnerID:   ownerID,
		AccountID: accountID,
		Kind:      kind,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
