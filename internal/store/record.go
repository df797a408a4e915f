package store

import (
	"encoding/json"
	"fmt"

	"github.com/kalvik/ovc/internal/index"
	"github.com/kalvik/ovc/internal/models"
)

// deltaEntry is one (object id, value) pair of a serialized delta.
// Entries are stored as an ordered list, not a JSON object, because
// insertion order must survive the round trip.
type deltaEntry struct {
	ObjectID uint64 `json:"oid"`
	Value    uint64 `json:"val"`
}

// commitRecord is the serialized form of a commit used by the bbolt
// and in-memory backends.
type commitRecord struct {
	ID        uint64                  `json:"id"`
	Parent    uint64                  `json:"parent"`
	Timestamp int64                   `json:"timestamp,omitempty"`
	Deltas    map[string][]deltaEntry `json:"deltas,omitempty"`
}

func encodeCommit(c *models.Commit) ([]byte, error) {
	rec := commitRecord{
		ID:        c.ID,
		Parent:    c.Parent,
		Timestamp: c.Timestamp,
	}
	if len(c.Deltas) > 0 {
		rec.Deltas = make(map[string][]deltaEntry, len(c.Deltas))
		for collection, ix := range c.Deltas {
			entries := make([]deltaEntry, 0, ix.Len())
			for oid, value := range ix.All() {
				entries = append(entries, deltaEntry{ObjectID: oid, Value: value})
			}
			rec.Deltas[collection] = entries
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal commit %d: %w", c.ID, err)
	}
	return data, nil
}

func decodeCommit(data []byte) (*models.Commit, error) {
	var rec commitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	c := &models.Commit{
		ID:        rec.ID,
		Parent:    rec.Parent,
		Timestamp: rec.Timestamp,
		Deltas:    make(map[string]*index.IdIndex, len(rec.Deltas)),
	}
	for collection, entries := range rec.Deltas {
		ix := index.NewWithCapacity(len(entries))
		for _, e := range entries {
			ix.Put(e.ObjectID, e.Value)
		}
		c.Deltas[collection] = ix
	}
	return c, nil
}

// eligibleBefore is the expiry scan rule: a record with no timestamp
// is always eligible.
func eligibleBefore(timestamp, maxTime int64) bool {
	return timestamp == 0 || timestamp < maxTime
}
