// Package cache provides byte-level caching for computed layouts and rendered
// artifacts.
//
// Layout runs are deterministic: the same profile with the same parameters
// always yields the same layout. The pipeline therefore keys cached results by
// content hashes and can skip ordering and rendering entirely on a hit.
//
// # Backends
//
//   - [FileCache]: one file per entry under a directory, for CLI use
//   - [RedisCache]: shared cache for multi-instance server deployments
//   - [NullCache]: disables caching
//
// # Keys
//
// A [Keyer] builds keys from content hashes and options. [ScopedKeyer] adds a
// prefix so that several tenants can share one backend.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/blockorder/pkg/layout"
)

// Default time-to-live values.
const (
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache stores opaque byte values.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is reported
	// as a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// LayoutKeyOpts are the inputs besides the profile that determine a layout.
type LayoutKeyOpts struct {
	Params layout.Params `json:"params"`
}

// ArtifactKeyOpts are the inputs besides the layout that determine an
// artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	// Function restricts graph renderings to one function.
	Function string `json:"function,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey returns the key for the layout of the profile with the given
	// content hash.
	LayoutKey(profileHash string, opts LayoutKeyOpts) string

	// ArtifactKey returns the key for an artifact rendered from the layout
	// with the given content hash.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes all key inputs.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(profileHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", profileHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}
