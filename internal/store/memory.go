package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kalvik/ovc/internal/models"
)

// Memory is an in-memory store used in tests and as a reference
// implementation of the contract. Commits round-trip through the same
// serialized record as the bbolt backend, so stored commits are
// isolated from caller mutation.
type Memory struct {
	mu        sync.Mutex
	commits   map[uint64][]byte
	branches  map[string]*models.Branch
	documents map[string]map[uint64]*models.Document
	sequences map[string]uint64
	frozen    bool

	// FailScans makes every scan operation return an error, for
	// exercising abort paths in maintenance.
	FailScans bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		commits:   make(map[uint64][]byte),
		branches:  make(map[string]*models.Branch),
		documents: make(map[string]map[uint64]*models.Document),
		sequences: make(map[string]uint64),
	}
}

// Close is a no-op.
func (s *Memory) Close() error { return nil }

func (s *Memory) scanErr() error {
	if s.FailScans {
		return fmt.Errorf("store scan failed: simulated outage")
	}
	return nil
}

// PutCommit stores a commit.
func (s *Memory) PutCommit(_ context.Context, c *models.Commit) error {
	data, err := encodeCommit(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[c.ID] = data
	return nil
}

// GetCommit retrieves a commit by id.
func (s *Memory) GetCommit(_ context.Context, id uint64) (*models.Commit, error) {
	s.mu.Lock()
	data, ok := s.commits[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("commit %d: %w", id, ErrUnknownCommit)
	}
	return decodeCommit(data)
}

// HasCommit reports whether a commit exists.
func (s *Memory) HasCommit(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.commits[id]
	return ok, nil
}

// CommitIDsBefore returns ids of commits older than maxTime.
func (s *Memory) CommitIDsBefore(_ context.Context, maxTime int64) ([]uint64, error) {
	if err := s.scanErr(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, data := range s.commits {
		c, err := decodeCommit(data)
		if err != nil {
			return nil, err
		}
		if eligibleBefore(c.Timestamp, maxTime) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ScanDeltas streams every delta entry of a collection across all
// stored commits.
func (s *Memory) ScanDeltas(_ context.Context, collection string, fn func(objectID, value uint64) error) error {
	if err := s.scanErr(); err != nil {
		return err
	}
	s.mu.Lock()
	records := make([][]byte, 0, len(s.commits))
	for _, data := range s.commits {
		records = append(records, data)
	}
	s.mu.Unlock()

	for _, data := range records {
		c, err := decodeCommit(data)
		if err != nil {
			return err
		}
		ix, ok := c.Deltas[collection]
		if !ok {
			continue
		}
		for oid, value := range ix.All() {
			if err := fn(oid, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// CommitLog returns up to limit commits in descending id order.
func (s *Memory) CommitLog(_ context.Context, limit int) ([]*models.Commit, error) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.commits))
	for id := range s.commits {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	commits := make([]*models.Commit, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCommit(context.Background(), id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// DeleteCommits removes a batch of commits.
func (s *Memory) DeleteCommits(_ context.Context, ids []uint64) error {
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d commits: %w", len(ids), ErrBatchTooLarge)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.commits, id)
	}
	return nil
}

// CreateBranch stores a new branch pointing at head.
func (s *Memory) CreateBranch(_ context.Context, name string, head uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[name]; ok {
		return fmt.Errorf("branch %s: %w", name, ErrBranchExists)
	}
	s.branches[name] = &models.Branch{Name: name, Head: head, CreatedAt: time.Now()}
	return nil
}

// GetBranch retrieves a branch by name.
func (s *Memory) GetBranch(_ context.Context, name string) (*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[name]
	if !ok {
		return nil, fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	cp := *b
	return &cp, nil
}

// ListBranches returns all branches sorted by name.
func (s *Memory) ListBranches(_ context.Context) ([]*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	branches := make([]*models.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		cp := *b
		branches = append(branches, &cp)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// SetBranchHead unconditionally repoints an existing branch.
func (s *Memory) SetBranchHead(_ context.Context, name string, head uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[name]
	if !ok {
		return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	b.Head = head
	return nil
}

// SwapBranchHead repoints the branch only if its head still equals
// oldHead.
func (s *Memory) SwapBranchHead(_ context.Context, name string, oldHead, newHead uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[name]
	if !ok {
		return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	if b.Head != oldHead {
		return fmt.Errorf("branch %s: %w", name, ErrHeadMoved)
	}
	b.Head = newHead
	return nil
}

// DeleteBranch removes a branch by name.
func (s *Memory) DeleteBranch(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[name]; !ok {
		return fmt.Errorf("branch %s: %w", name, ErrUnknownBranch)
	}
	delete(s.branches, name)
	return nil
}

// PutDocument stores a document revision in a collection.
func (s *Memory) PutDocument(_ context.Context, collection string, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.documents[collection]
	if !ok {
		coll = make(map[uint64]*models.Document)
		s.documents[collection] = coll
	}
	cp := *doc
	coll[doc.ID] = &cp
	return nil
}

// GetDocument retrieves a document revision by id.
func (s *Memory) GetDocument(_ context.Context, collection string, id uint64) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[collection][id]
	if !ok {
		return nil, fmt.Errorf("document %d in %s: %w", id, collection, ErrUnknownDocument)
	}
	cp := *doc
	return &cp, nil
}

// DocumentIDsBefore returns ids of documents older than maxTime.
func (s *Memory) DocumentIDsBefore(_ context.Context, collection string, maxTime int64) ([]uint64, error) {
	if err := s.scanErr(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, doc := range s.documents[collection] {
		if eligibleBefore(doc.Timestamp, maxTime) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DeleteDocuments removes a batch of documents from a collection.
func (s *Memory) DeleteDocuments(_ context.Context, collection string, ids []uint64) error {
	if len(ids) > MaxDeleteBatch {
		return fmt.Errorf("delete %d documents: %w", len(ids), ErrBatchTooLarge)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.documents[collection], id)
	}
	return nil
}

// NextID returns the next value of a named sequence.
func (s *Memory) NextID(_ context.Context, sequence string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[sequence]++
	return s.sequences[sequence], nil
}

// Freeze takes the advisory maintenance lock.
func (s *Memory) Freeze(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrLockHeld
	}
	s.frozen = true
	return nil
}

// Unfreeze releases the advisory maintenance lock.
func (s *Memory) Unfreeze(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = false
	return nil
}
