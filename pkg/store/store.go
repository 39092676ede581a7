// Package store persists layout runs so the API can serve them after the
// request that computed them.
//
// Backends:
//   - [FileStore]: JSON files in a directory, for the CLI and single-instance servers
//   - [MongoStore]: a MongoDB collection, for shared deployments
//
// # Usage
//
//	st, err := store.NewFileStore("")  // ~/.cache/blockorder/runs/
//	if err != nil {
//	    return err
//	}
//	run := store.NewRun(result.ProfileHash, result.Layout, store.DefaultTTL)
//	run.Artifacts = result.Artifacts
//	if err := st.Put(ctx, run); err != nil {
//	    return err
//	}
//
// Runs expire. Get hides expired runs and Cleanup removes them.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a run does not exist or has expired.
	ErrNotFound = errors.New(errors.ErrCodeRunNotFound, "run not found")

	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New(errors.ErrCodeInvalidInput, "invalid run id")
)

// DefaultTTL is how long runs are kept.
const DefaultTTL = 7 * 24 * time.Hour

// Run is one stored layout computation.
type Run struct {
	ID          string    `json:"id" bson:"_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
	ProfileHash string    `json:"profile_hash" bson:"profile_hash"`

	Params    layout.Params  `json:"params" bson:"params"`
	Functions int            `json:"functions" bson:"functions"`
	Totals    layout.Totals  `json:"totals" bson:"totals"`
	Layout    *layout.Layout `json:"layout,omitempty" bson:"layout,omitempty"`

	// Artifacts holds rendered outputs keyed by format.
	Artifacts map[string][]byte `json:"artifacts,omitempty" bson:"artifacts,omitempty"`
}

// NewRun creates a run for l with a fresh id.
func NewRun(profileHash string, l *layout.Layout, ttl time.Duration) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		ProfileHash: profileHash,
		Params:      l.Params,
		Functions:   len(l.Functions) + len(l.Cold),
		Totals:      l.Totals(),
		Layout:      l,
	}
}

// IsExpired reports whether the run has passed its expiry time.
func (r *Run) IsExpired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// Summary returns a copy of r without layout and artifacts.
func (r *Run) Summary() *Run {
	s := *r
	s.Layout = nil
	s.Artifacts = nil
	return &s
}

// Store is the interface for run storage backends.
type Store interface {
	// Get returns the run with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// Put stores run, replacing any run with the same id.
	Put(ctx context.Context, run *Run) error

	// List returns run summaries, newest first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*Run, error)

	// Delete removes a run. Deleting a missing run is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired runs and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	Close() error
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
