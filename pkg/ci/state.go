package ci

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	bolt "go.etcd.io/bbolt"

	"github.com/habitat-sh/core/pkg/workspace"
)

var resultsBucket = []byte("results")

// RunResult records one action applied to one component.
type RunResult struct {
	Component string
	Action    workspace.Verb
	Commit    string
	Passed    bool
	Duration  time.Duration
	Finished  time.Time
}

// StateDB persists run results between CI invocations.
type StateDB struct {
	db *bolt.DB
}

// OpenState opens (or creates) the state database under cacheDir.
func OpenState(cacheDir string) (*StateDB, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", cacheDir)
	}

	dbPath := filepath.Join(cacheDir, "state.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "failed to prepare %s", dbPath)
	}

	return &StateDB{db: db}, nil
}

// Close releases the database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

func resultKey(component string, action workspace.Verb) []byte {
	return []byte(component + "\x00" + string(action))
}

// Record stores the result of a run, replacing any earlier result for
// the same component and action.
func (s *StateDB) Record(result RunResult) error {
	buffer := bytes.Buffer{}
	err := gob.NewEncoder(&buffer).Encode(result)
	if err != nil {
		return eris.Wrap(err, "failed to encode run result")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(resultsBucket).Put(resultKey(result.Component, result.Action), buffer.Bytes())
	})
}

// Lookup returns the recorded result for the component and action, or
// nil when none exists.
func (s *StateDB) Lookup(component string, action workspace.Verb) (*RunResult, error) {
	var result *RunResult

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(resultsBucket).Get(resultKey(component, action))
		if raw == nil {
			return nil
		}

		result = new(RunResult)
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(result)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load the result for %s-%s", action, component)
	}
	return result, nil
}

// ShouldSkip reports whether the component already passed the action at
// the given commit.
func (s *StateDB) ShouldSkip(component string, action workspace.Verb, commit string) (bool, error) {
	result, err := s.Lookup(component, action)
	if err != nil {
		return false, err
	}
	return result != nil && result.Passed && result.Commit == commit, nil
}
