package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"geoetl/pkg/errors"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
)

// Document is the persisted checkpoint layout. It is plain JSON, readable
// by the recovery analyzer (or an operator) without the running process.
type Document struct {
	Completed   map[string]CompletedEntry `json:"completed"`
	Failed      map[string]FailedEntry    `json:"failed"`
	Claimed     map[string]ClaimEntry     `json:"claimed"`
	TotalMarks  int64                     `json:"total_marks"`
	LastUpdated time.Time                 `json:"last_updated"`
	Version     int                       `json:"version"`
}

// CompletedEntry records a finished unit and how many source records it
// accounted for, written or skipped. Keeping the full streamed count is
// what lets reconciliation balance against authoritative source counts.
type CompletedEntry struct {
	Marks       int       `json:"marks"`
	CompletedAt time.Time `json:"completed_at"`
}

// FailedEntry records the most recent failure of a unit.
type FailedEntry struct {
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// ClaimEntry records an in-progress claim and when it was taken.
type ClaimEntry struct {
	ClaimedAt time.Time `json:"claimed_at"`
}

// Snapshot is a consistent point-in-time view of the store.
type Snapshot struct {
	Completed   map[models.UnitKey]CompletedEntry
	Failed      map[models.UnitKey]FailedEntry
	Claimed     map[models.UnitKey]ClaimEntry
	TotalMarks  int64
	LastUpdated time.Time
}

const documentVersion = 1

// Store is the durable record of unit progress and the single piece of
// mutable shared state in the pipeline. All claim arbitration between
// workers goes through it; every mutation is flushed to disk before the
// mutating call returns.
//
// Open is the only constructor and performs initialization synchronously,
// so a Store handed to the worker pool is always backed by a valid on-disk
// document. That ordering is what prevents concurrent first-use from
// recreating the file underneath in-flight writers.
type Store struct {
	path string
	log  logger.Logger

	mu  sync.Mutex
	doc Document
}

// Open loads the checkpoint document at path, creating it if absent. An
// existing file that cannot be decoded yields a CheckpointCorrupt error;
// the store never silently resets state it cannot read.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.doc = emptyDocument()
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("failed to initialize checkpoint: %w", err)
		}
		log.InfoWithFields("checkpoint initialized", map[string]interface{}{
			"path": path,
		})
	case err != nil:
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	default:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.CheckpointCorrupt(fmt.Sprintf("checkpoint %s is unreadable", path), err)
		}
		if doc.Completed == nil || doc.Failed == nil || doc.Claimed == nil {
			return nil, errors.New(errors.ErrorTypeCheckpointCorrupt,
				fmt.Sprintf("checkpoint %s is missing required sections", path))
		}
		s.doc = doc
		log.InfoWithFields("checkpoint loaded", map[string]interface{}{
			"path":      path,
			"completed": len(doc.Completed),
			"failed":    len(doc.Failed),
			"claimed":   len(doc.Claimed),
		})
	}

	return s, nil
}

func emptyDocument() Document {
	return Document{
		Completed: make(map[string]CompletedEntry),
		Failed:    make(map[string]FailedEntry),
		Claimed:   make(map[string]ClaimEntry),
		Version:   documentVersion,
	}
}

// TryClaim atomically claims a pending or previously-failed unit. Returns
// false without side effects when the unit is already claimed or completed,
// so of N concurrent callers for one key exactly one proceeds.
func (s *Store) TryClaim(key models.UnitKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, done := s.doc.Completed[k]; done {
		return false, nil
	}
	if _, held := s.doc.Claimed[k]; held {
		return false, nil
	}

	s.doc.Claimed[k] = ClaimEntry{ClaimedAt: time.Now().UTC()}
	if err := s.persistLocked(); err != nil {
		delete(s.doc.Claimed, k)
		return false, err
	}
	return true, nil
}

// MarkCompleted records a unit as done with its mark count and releases any
// claim. Idempotent: repeating it for an already-completed key changes
// nothing and is not an error.
func (s *Store) MarkCompleted(key models.UnitKey, marks int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, done := s.doc.Completed[k]; done {
		return nil
	}

	priorClaim, hadClaim := s.doc.Claimed[k]
	priorFailure, hadFailure := s.doc.Failed[k]

	s.doc.Completed[k] = CompletedEntry{Marks: marks, CompletedAt: time.Now().UTC()}
	s.doc.TotalMarks += int64(marks)
	delete(s.doc.Claimed, k)
	delete(s.doc.Failed, k)
	if err := s.persistLocked(); err != nil {
		delete(s.doc.Completed, k)
		s.doc.TotalMarks -= int64(marks)
		if hadClaim {
			s.doc.Claimed[k] = priorClaim
		}
		if hadFailure {
			s.doc.Failed[k] = priorFailure
		}
		return err
	}
	return nil
}

// MarkFailed records a unit failure and releases the claim so a later run
// can retry the unit.
func (s *Store) MarkFailed(key models.UnitKey, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, done := s.doc.Completed[k]; done {
		return nil
	}
	priorClaim, hadClaim := s.doc.Claimed[k]
	priorFailure, hadFailure := s.doc.Failed[k]

	s.doc.Failed[k] = FailedEntry{Reason: reason, FailedAt: time.Now().UTC()}
	delete(s.doc.Claimed, k)
	if err := s.persistLocked(); err != nil {
		if hadFailure {
			s.doc.Failed[k] = priorFailure
		} else {
			delete(s.doc.Failed, k)
		}
		if hadClaim {
			s.doc.Claimed[k] = priorClaim
		}
		return err
	}
	return nil
}

// ReleaseStale demotes claims older than the threshold back to pending,
// recovering units whose worker died without reporting. Returns the keys
// released. Idempotent under concurrent callers the same way TryClaim is.
func (s *Store) ReleaseStale(olderThan time.Duration) ([]models.UnitKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var released []models.UnitKey
	removed := make(map[string]ClaimEntry)
	for k, claim := range s.doc.Claimed {
		if claim.ClaimedAt.After(cutoff) {
			continue
		}
		key, err := models.ParseUnitKey(k)
		if err != nil {
			continue
		}
		removed[k] = claim
		delete(s.doc.Claimed, k)
		released = append(released, key)
	}
	if len(released) == 0 {
		return nil, nil
	}
	sort.Slice(released, func(i, j int) bool { return released[i].Less(released[j]) })
	if err := s.persistLocked(); err != nil {
		for k, claim := range removed {
			s.doc.Claimed[k] = claim
		}
		return nil, err
	}
	s.log.InfoWithFields("released stale claims", map[string]interface{}{
		"count":      len(released),
		"older_than": olderThan.String(),
	})
	return released, nil
}

// Snapshot returns a consistent copy of the store's state for read-only
// consumers such as the recovery analyzer.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Completed:   make(map[models.UnitKey]CompletedEntry, len(s.doc.Completed)),
		Failed:      make(map[models.UnitKey]FailedEntry, len(s.doc.Failed)),
		Claimed:     make(map[models.UnitKey]ClaimEntry, len(s.doc.Claimed)),
		TotalMarks:  s.doc.TotalMarks,
		LastUpdated: s.doc.LastUpdated,
	}
	for k, v := range s.doc.Completed {
		if key, err := models.ParseUnitKey(k); err == nil {
			snap.Completed[key] = v
		}
	}
	for k, v := range s.doc.Failed {
		if key, err := models.ParseUnitKey(k); err == nil {
			snap.Failed[key] = v
		}
	}
	for k, v := range s.doc.Claimed {
		if key, err := models.ParseUnitKey(k); err == nil {
			snap.Claimed[key] = v
		}
	}
	return snap
}

// IsCompleted reports whether a unit has finished.
func (s *Store) IsCompleted(key models.UnitKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, done := s.doc.Completed[key.String()]
	return done
}

// Path returns the location of the backing document.
func (s *Store) Path() string {
	return s.path
}

// persistLocked writes the document atomically: temp file, fsync, rename.
// Callers hold s.mu.
func (s *Store) persistLocked() error {
	s.doc.LastUpdated = time.Now().UTC()
	s.doc.Version = documentVersion

	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}
