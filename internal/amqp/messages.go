package amqp

import (
	"encoding/json"
	"time"
)

// Record kinds carried by RecordChangedMessage.
const (
	KindSale      = "sale"
	KindExpense   = "expense"
	KindCashShift = "cash_shift"
	KindInventory = "inventory"
)

// RecordChangedMessage announces that a record was written. It carries only
// the keys the rollup worker needs to recompute the affected day; the record
// itself is re-read from storage.
type RecordChangedMessage struct {
	Kind       string    `json:"kind"`
	OrgID      string    `json:"org_id"`
	BusinessID string    `json:"business_id"`
	RecordID   string    `json:"record_id"`
	Day        string    `json:"day,omitempty"` // YYYY-MM-DD on the org calendar
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(kind, orgID, businessID, recordID, day string) *RecordChangedMessage {
	return &RecordChangedMessage{
		Kind:       kind,
		OrgID:      orgID,
		BusinessID: businessID,
		RecordID:   recordID,
		Day:        day,
		Timestamp:  time.Now(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
