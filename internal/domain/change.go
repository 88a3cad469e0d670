package domain

import (
	"encoding/json"
	"time"
)

// Table names of the change feed.
const (
	TableStreams    = "streams"
	TableStreamChat = "stream_chat"
)

// ChangeType is the kind of row change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeAll    ChangeType = "*"
)

// Change is a full-row snapshot delivered by the change feed.
type Change struct {
	Table           string          `json:"table"`
	Type            ChangeType      `json:"type"`
	Record          json.RawMessage `json:"record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewChange builds a change for record.
func NewChange(table string, typ ChangeType, record interface{}) (*Change, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &Change{
		Table:           table,
		Type:            typ,
		Record:          data,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}

// Stream decodes the record as a streams row.
func (c *Change) Stream() (*Stream, error) {
	var s Stream
	if err := json.Unmarshal(c.Record, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ChatMessage decodes the record as a stream_chat row.
func (c *Change) ChatMessage() (*ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(c.Record, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Fields decodes the record into a column map for filtering.
func (c *Change) Fields() (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(c.Record, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
