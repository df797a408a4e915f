package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kalvik/ovc/internal/models"
)

var (
	bucketCommits   = []byte("commits")
	bucketBranches  = []byte("branches")
	bucketDocuments = []byte("documents")
	bucketCounters  = []byte("counters")
	bucketLocks     = []byte("locks")
)

var lockKey = []byte("maintenance")

// Bolt is the bbolt-backed store. Commits and documents are stored as
// JSON records under big-endian id keys; documents live in one nested
// bucket per collection.
type Bolt struct {
	db *bolt.DB
}

var _ Store = (*Bolt)(nil)

// NewBolt opens or creates a bbolt database at the given path.
func NewBolt(dbPath string) (*Bolt, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCommits, bucketBranches, bucketDocuments, bucketCounters, bucketLocks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the bbolt database.
func (s *Bolt) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func idKey(id uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], id)
	return key[:]
}

// PutCommit stores a commit.
func (s *Bolt) PutCommit(_ context.Context, c *models.Commit) error {
	data, err := encodeCommit(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCommits).Put(idKey(c.ID), data)
	})
}

// GetCommit retrieves a commit by id.
func (s *Bolt) GetCommit(_ context.Context, id uint64) (*models.Commit, error) {
	var c *models.Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCommits).Get(idKey(id))
		if data == nil {
			return fmt.Errorf("commit %d: %w", id, ErrUnknownCommit)
		}
		var err error
		c, err = decodeCommit(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// HasCommit reports whether a commit exists.
func (s *Bolt) HasCommit(_ context.Context, id uint64) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketCommits).Get(idKey(id)) != nil
		return nil
	})
	return exists, err
}

// CommitIDsBefore returns ids of commits older than maxTime, treating
// a missing timestamp as older than everything.
func (s *Bolt) CommitIDsBefore(_ context.Context, maxTime int64) ([]uint64, error) {
	var ids []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCommits).ForEach(func(k, v []byte) error {
			var rec commitRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal commit: %w", err)
			}
			if eligibleBefore(rec.Timestamp, maxTime) {
				ids = append(ids, rec.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ScanDeltas streams every delta entry of a collection across all
// stored commits.
func (s *Bolt) ScanDeltas(_ context.Context, collection string, fn func(objectID, value uint64) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCommits).ForEach(func(k, v []byte) error {
			var rec commitRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal commit: %w", err)
			}
			for _, e := range rec.Deltas[collection] {
				if err := fn(e.ObjectID, e.Value); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// CommitLog returns up to limit commits in descending id order.
func (s *Bolt) CommitLog(_ context.Context, limit int) ([]*models.Commit, error) {
	var commits []*models.Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCommits).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(commits) == limit {
				break
			}
			commit, err := decodeCommit(v)
			if err != nil {
				return err
			}
			commits = append(commits, commit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// DeleteCommits removes a batch of commits.
func (s *Bolt) DeleteCommits(_ context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d commits: %w", len(ids), ErrBatchTooLarge)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCommits)
		for _, id := range ids {
			if err := b.Delete(idKey(id)); err != nil {
				return fmt.Errorf("delete commit %d: %w", id, err)
			}
		}
		return nil
	})
}

// CreateBranch stores a new branch pointing at head.
func (s *Bolt) CreateBranch(_ context.Context, name string, head uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		if b.Get([]byte(name)) != nil {
			return fmt.Errorf("branch %s: %w", name, ErrBranchExists)
		}
		branch := &models.Branch{Name: name, Head: head, CreatedAt: time.Now()}
		data, err := json.Marshal(branch)
		if err != nil {
			return fmt.Errorf("marshal branch: %w", err)
		}
		return b.Put([]byte(name), data)
	})
}

// GetBranch retrieves a branch by name.
func (s *Bolt) GetBranch(_ context.Context, name string) (*models.Branch, error) {
	var branch *models.Branch
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBranches).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
		}
		branch = &models.Branch{}
		return json.Unmarshal(data, branch)
	})
	if err != nil {
		return nil, err
	}
	return branch, nil
}

// ListBranches returns all branches sorted by name.
func (s *Bolt) ListBranches(_ context.Context) ([]*models.Branch, error) {
	var branches []*models.Branch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBranches).ForEach(func(k, v []byte) error {
			var branch models.Branch
			if err := json.Unmarshal(v, &branch); err != nil {
				return fmt.Errorf("unmarshal branch: %w", err)
			}
			branches = append(branches, &branch)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

func (s *Bolt) updateBranchHead(name string, head uint64, expect func(current uint64) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
		}
		var branch models.Branch
		if err := json.Unmarshal(data, &branch); err != nil {
			return fmt.Errorf("unmarshal branch: %w", err)
		}
		if expect != nil {
			if err := expect(branch.Head); err != nil {
				return err
			}
		}
		branch.Head = head
		updated, err := json.Marshal(&branch)
		if err != nil {
			return fmt.Errorf("marshal branch: %w", err)
		}
		return b.Put([]byte(name), updated)
	})
}

// SetBranchHead unconditionally repoints an existing branch.
func (s *Bolt) SetBranchHead(_ context.Context, name string, head uint64) error {
	return s.updateBranchHead(name, head, nil)
}

// SwapBranchHead repoints the branch only if its head still equals
// oldHead. The bbolt write transaction makes the check-and-set atomic.
func (s *Bolt) SwapBranchHead(_ context.Context, name string, oldHead, newHead uint64) error {
	return s.updateBranchHead(name, newHead, func(current uint64) error {
		if current != oldHead {
			return fmt.Errorf("branch %s: %w", name, ErrHeadMoved)
		}
		return nil
	})
}

// DeleteBranch removes a branch by name.
func (s *Bolt) DeleteBranch(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBranches)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
		}
		return b.Delete([]byte(name))
	})
}

func collectionBucket(tx *bolt.Tx, collection string, create bool) (*bolt.Bucket, error) {
	root := tx.Bucket(bucketDocuments)
	if create {
		return root.CreateBucketIfNotExists([]byte(collection))
	}
	return root.Bucket([]byte(collection)), nil
}

// PutDocument stores a document revision in a collection.
func (s *Bolt) PutDocument(_ context.Context, collection string, doc *models.Document) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := collectionBucket(tx, collection, true)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document %d: %w", doc.ID, err)
		}
		return b.Put(idKey(doc.ID), data)
	})
}

// GetDocument retrieves a document revision by id.
func (s *Bolt) GetDocument(_ context.Context, collection string, id uint64) (*models.Document, error) {
	var doc *models.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b, _ := collectionBucket(tx, collection, false)
		var data []byte
		if b != nil {
			data = b.Get(idKey(id))
		}
		if data == nil {
			return fmt.Errorf("document %d in %s: %w", id, collection, ErrUnknownDocument)
		}
		doc = &models.Document{}
		return json.Unmarshal(data, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DocumentIDsBefore returns ids of documents older than maxTime,
// treating a missing timestamp as older than everything.
func (s *Bolt) DocumentIDsBefore(_ context.Context, collection string, maxTime int64) ([]uint64, error) {
	var ids []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b, _ := collectionBucket(tx, collection, false)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var doc models.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshal document: %w", err)
			}
			if eligibleBefore(doc.Timestamp, maxTime) {
				ids = append(ids, doc.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteDocuments removes a batch of documents from a collection.
func (s *Bolt) DeleteDocuments(_ context.Context, collection string, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d documents: %w", len(ids), ErrBatchTooLarge)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, _ := collectionBucket(tx, collection, false)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete(idKey(id)); err != nil {
				return fmt.Errorf("delete document %d: %w", id, err)
			}
		}
		return nil
	})
}

// NextID returns the next value of a named sequence.
func (s *Bolt) NextID(_ context.Context, sequence string) (uint64, error) {
	var next uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		next = 1
		if current := b.Get([]byte(sequence)); len(current) == 8 {
			next = binary.BigEndian.Uint64(current) + 1
		}
		return b.Put([]byte(sequence), idKey(next))
	})
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", sequence, err)
	}
	return next, nil
}

// Freeze takes the advisory maintenance lock.
func (s *Bolt) Freeze(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		if b.Get(lockKey) != nil {
			return ErrLockHeld
		}
		return b.Put(lockKey, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// Unfreeze releases the advisory maintenance lock.
func (s *Bolt) Unfreeze(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Delete(lockKey)
	})
}
