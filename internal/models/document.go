package models

import (
	"encoding/json"
	"time"
)

// Document is one stored revision of a logical object. ID is the
// revision's own unique 64-bit id; commits reference a revision by
// putting its ID as the delta value for the logical object id.
type Document struct {
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
	// Timestamp is milliseconds since epoch; 0 means the document
	// carries no timestamp, which maintenance treats as expired.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// NewDocument creates a document revision stamped with the current
// wall clock.
func NewDocument(id uint64, data json.RawMessage) *Document {
	return &Document{
		ID:        id,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
