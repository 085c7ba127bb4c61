package persistence

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned by LoadCheckpoint when the requested
// (pid, tag) pair has no stored bundle.
var ErrCheckpointNotFound = errors.New("persistence: checkpoint not found")

// CheckpointID is a persisted checkpoint record: a pair (pid, tag?). Tag
// is an optional string letting multiple checkpoints coexist for the
// same pid; the persister maps each record to exactly one bundle.
type CheckpointID struct {
	PID string
	Tag string // "" means the untagged checkpoint for PID
}

// filename-equivalent key the disk-backed persister uses to address a
// single checkpoint slot.
func (c CheckpointID) key() string {
	if c.Tag == "" {
		return c.PID
	}
	return c.PID + "." + c.Tag
}

// Persister is the storage backend contract for bundles, addressed by
// (pid, tag?). Implementations must be thread-safe at whole-operation
// granularity; callers must not interleave partial reads of a single
// checkpoint across goroutines.
type Persister interface {
	// SaveCheckpoint stores bundle under (pid, tag), overwriting any
	// existing checkpoint at that address.
	SaveCheckpoint(ctx context.Context, id CheckpointID, bundle *Bundle) error

	// LoadCheckpoint retrieves the bundle stored at (pid, tag). Returns
	// ErrCheckpointNotFound if absent.
	LoadCheckpoint(ctx context.Context, id CheckpointID) (*Bundle, error)

	// GetCheckpoints enumerates every stored checkpoint record.
	GetCheckpoints(ctx context.Context) ([]CheckpointID, error)

	// GetProcessCheckpoints enumerates every checkpoint record for a
	// single pid (all of its tags, including the untagged one).
	GetProcessCheckpoints(ctx context.Context, pid string) ([]CheckpointID, error)

	// DeleteCheckpoint removes a single checkpoint. It never errors when
	// the checkpoint is already absent.
	DeleteCheckpoint(ctx context.Context, id CheckpointID) error

	// DeleteProcessCheckpoints removes every checkpoint for pid.
	DeleteProcessCheckpoints(ctx context.Context, pid string) error
}
