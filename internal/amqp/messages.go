package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"ccdash/internal/core"
)

// FilterPayload is the wire form of a sidebar selection. A null genders
// list means every gender.
type FilterPayload struct {
	Genders []string   `json:"genders"`
	Amount  core.Range `json:"amount"`
	Age     core.Range `json:"age"`
	States  []string   `json:"states"`
}

// SnapshotMessage announces that a dashboard snapshot was served for a
// filter, with the KPIs it produced.
type SnapshotMessage struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id,omitempty"`
	FilterKey string          `json:"filter_key"`
	Filter    FilterPayload   `json:"filter"`
	KPIs      core.KPIRawView `json:"kpis"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSnapshotMessage creates a message with a fresh ID.
func NewSnapshotMessage(requestID string, f core.Filter, k core.KPIs) *SnapshotMessage {
	return &SnapshotMessage{
		ID:        uuid.NewString(),
		RequestID: requestID,
		FilterKey: f.Key(),
		Filter: FilterPayload{
			Genders: f.Genders,
			Amount:  f.Amount,
			Age:     f.Age,
			States:  f.States,
		},
		KPIs:      k.View().Raw,
		Timestamp: time.Now().UTC(),
	}
}

// CoreFilter converts the payload back into a core filter.
func (m *SnapshotMessage) CoreFilter() core.Filter {
	return core.Filter{
		Genders: m.Filter.Genders,
		Amount:  m.Filter.Amount,
		Age:     m.Filter.Age,
		States:  m.Filter.States,
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON parses and validates a message.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, errors.New("snapshot message has an invalid id")
	}
	return &msg, nil
}
