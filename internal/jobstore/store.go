// Package jobstore persists the recurring consolidate-below job so a
// restarted daemon can resume it.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
	"github.com/Klingon-tech/klingnet-consolidator/internal/storage"
)

// Namespace and key of the persisted job. Together they form
// "consolidator/consolidate-below" in the underlying DB.
const (
	Namespace = "consolidator/"
	JobKey    = "consolidate-below"
)

// Store keeps one job definition in a storage.DB.
type Store struct {
	db storage.DB
}

// New creates a Store inside the consolidator namespace of db.
func New(db storage.DB) *Store {
	return &Store{db: storage.NewPrefixDB(db, []byte(Namespace))}
}

// Save replaces the stored job.
func (s *Store) Save(args consolidate.Args) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal consolidate job: %w", err)
	}
	return s.db.Put([]byte(JobKey), data)
}

// Load returns the stored job, or consolidate.ErrNoJob when there is none.
// A payload that does not decode as a job is an error.
func (s *Store) Load() (consolidate.Args, error) {
	data, err := s.db.Get([]byte(JobKey))
	if errors.Is(err, storage.ErrNotFound) {
		return consolidate.Args{}, consolidate.ErrNoJob
	}
	if err != nil {
		return consolidate.Args{}, fmt.Errorf("read consolidate job: %w", err)
	}
	args, err := consolidate.ParseArgs(data)
	if err != nil {
		return consolidate.Args{}, fmt.Errorf("could not parse persisted consolidate job %q: %w", data, err)
	}
	return args, nil
}

// Delete removes the stored job. Deleting a missing job is not an error.
func (s *Store) Delete() error {
	return s.db.Delete([]byte(JobKey))
}

// Has reports whether a job is stored.
func (s *Store) Has() (bool, error) {
	return s.db.Has([]byte(JobKey))
}
