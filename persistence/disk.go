package persistence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// diskSuffix is the fixed filename suffix for on-disk checkpoint files.
const diskSuffix = ".bundle"

// DiskPersister is a pickle-style on-disk Persister: one file per
// checkpoint under a configured directory, named "{pid}.bundle" or
// "{pid}.{tag}.bundle". Writes fsync the temp file before renaming it
// into place, so a crash mid-write never leaves a torn checkpoint on
// disk (the reference implementation omits this; it is added here for a
// faithful, crash-safe reimplementation).
type DiskPersister struct {
	dir string
	mu  sync.Mutex // serializes writes so concurrent SaveCheckpoint calls don't race on the same temp-file name
}

// NewDiskPersister constructs a DiskPersister rooted at dir, creating
// the directory if it does not already exist.
func NewDiskPersister(dir string) (*DiskPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskPersister{dir: dir}, nil
}

func (d *DiskPersister) path(id CheckpointID) string {
	return filepath.Join(d.dir, id.key()+diskSuffix)
}

// SaveCheckpoint writes bundle to a temp file, fsyncs it, then renames
// it atomically over the target path.
func (d *DiskPersister) SaveCheckpoint(_ context.Context, id CheckpointID, bundle *Bundle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.path(id)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(bundle.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}

func (d *DiskPersister) LoadCheckpoint(_ context.Context, id CheckpointID) (*Bundle, error) {
	data, err := os.ReadFile(d.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return ParseBundle(data)
}

// GetCheckpoints lists every checkpoint file in the directory, decoding
// each filename into its (pid, tag) pair.
func (d *DiskPersister) GetCheckpoints(_ context.Context) ([]CheckpointID, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var ids []CheckpointID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, diskSuffix) {
			continue
		}
		ids = append(ids, decodeCheckpointFilename(strings.TrimSuffix(name, diskSuffix)))
	}
	return ids, nil
}

func (d *DiskPersister) GetProcessCheckpoints(ctx context.Context, pid string) ([]CheckpointID, error) {
	all, err := d.GetCheckpoints(ctx)
	if err != nil {
		return nil, err
	}
	var ids []CheckpointID
	for _, id := range all {
		if id.PID == pid {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeleteCheckpoint never errors when the checkpoint is already absent.
func (d *DiskPersister) DeleteCheckpoint(_ context.Context, id CheckpointID) error {
	err := os.Remove(d.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *DiskPersister) DeleteProcessCheckpoints(ctx context.Context, pid string) error {
	ids, err := d.GetProcessCheckpoints(ctx, pid)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := d.DeleteCheckpoint(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// decodeCheckpointFilename splits a "{pid}" or "{pid}.{tag}" stem back
// into its CheckpointID. A pid is a UUID string with no dots, so the
// first dot (if any) unambiguously separates pid from tag.
func decodeCheckpointFilename(stem string) CheckpointID {
	if idx := strings.Index(stem, "."); idx >= 0 {
		return CheckpointID{PID: stem[:idx], Tag: stem[idx+1:]}
	}
	return CheckpointID{PID: stem}
}
