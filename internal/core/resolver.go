package core

import "context"

// Resolve walks the ancestor chain of cid and returns the revision of
// objectID visible at that commit. The nearest ancestor whose delta
// contains the object wins; deltas in later commits shadow earlier
// ones. The boolean is false when no ancestor ever recorded the
// object.
//
// Cost is proportional to the distance between cid and the last
// commit that wrote the object. The walk is iterative.
func (db *DB) Resolve(ctx context.Context, cid uint64, collection string, objectID uint64) (uint64, bool, error) {
	w := db.Ancestors(cid)
	for w.Next(ctx) {
		ix, ok := w.Commit().Deltas[collection]
		if !ok {
			continue
		}
		if value, ok := ix.Get(objectID); ok {
			return value, true, nil
		}
	}
	if err := w.Err(); err != nil {
		return 0, false, err
	}
	return 0, false, nil
}
