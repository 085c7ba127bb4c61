package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func runPersisterContract(t *testing.T, newPersister func(t *testing.T) Persister) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		p := newPersister(t)
		bundle := NewBundle("process.Process")
		bundle.SetField("pid", "p1")

		id := CheckpointID{PID: "p1"}
		if err := p.SaveCheckpoint(ctx, id, bundle); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}

		loaded, err := p.LoadCheckpoint(ctx, id)
		if err != nil {
			t.Fatalf("LoadCheckpoint failed: %v", err)
		}
		if got := loaded.Field("pid").String(); got != "p1" {
			t.Fatalf("loaded pid = %q, want %q", got, "p1")
		}
	})

	t.Run("load missing checkpoint", func(t *testing.T) {
		p := newPersister(t)
		if _, err := p.LoadCheckpoint(ctx, CheckpointID{PID: "missing"}); err != ErrCheckpointNotFound {
			t.Fatalf("LoadCheckpoint error = %v, want ErrCheckpointNotFound", err)
		}
	})

	t.Run("tags coexist for the same pid", func(t *testing.T) {
		p := newPersister(t)
		b1 := NewBundle("process.Process")
		b2 := NewBundle("process.Process")

		if err := p.SaveCheckpoint(ctx, CheckpointID{PID: "p1"}, b1); err != nil {
			t.Fatalf("SaveCheckpoint(untagged) failed: %v", err)
		}
		if err := p.SaveCheckpoint(ctx, CheckpointID{PID: "p1", Tag: "before_wait"}, b2); err != nil {
			t.Fatalf("SaveCheckpoint(tagged) failed: %v", err)
		}

		ids, err := p.GetProcessCheckpoints(ctx, "p1")
		if err != nil {
			t.Fatalf("GetProcessCheckpoints failed: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("GetProcessCheckpoints returned %d ids, want 2", len(ids))
		}
	})

	t.Run("delete checkpoint never errors when absent", func(t *testing.T) {
		p := newPersister(t)
		if err := p.DeleteCheckpoint(ctx, CheckpointID{PID: "nobody"}); err != nil {
			t.Fatalf("DeleteCheckpoint on absent id returned %v, want nil", err)
		}
	})

	t.Run("delete process checkpoints removes all tags", func(t *testing.T) {
		p := newPersister(t)
		b := NewBundle("process.Process")
		if err := p.SaveCheckpoint(ctx, CheckpointID{PID: "p1"}, b); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		if err := p.SaveCheckpoint(ctx, CheckpointID{PID: "p1", Tag: "x"}, b); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		if err := p.DeleteProcessCheckpoints(ctx, "p1"); err != nil {
			t.Fatalf("DeleteProcessCheckpoints failed: %v", err)
		}
		ids, err := p.GetProcessCheckpoints(ctx, "p1")
		if err != nil {
			t.Fatalf("GetProcessCheckpoints failed: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("expected no checkpoints after delete, got %d", len(ids))
		}
	})

	t.Run("enumeration lists every checkpoint", func(t *testing.T) {
		p := newPersister(t)
		b := NewBundle("process.Process")
		ids := []CheckpointID{{PID: "p1"}, {PID: "p2", Tag: "t"}}
		for _, id := range ids {
			if err := p.SaveCheckpoint(ctx, id, b); err != nil {
				t.Fatalf("SaveCheckpoint failed: %v", err)
			}
		}

		got, err := p.GetCheckpoints(ctx)
		if err != nil {
			t.Fatalf("GetCheckpoints failed: %v", err)
		}
		sort.Slice(got, func(i, j int) bool { return got[i].key() < got[j].key() })
		if len(got) != 2 {
			t.Fatalf("GetCheckpoints returned %d entries, want 2", len(got))
		}
	})
}

func TestSQLitePersisterContract(t *testing.T) {
	runPersisterContract(t, func(t *testing.T) Persister {
		p, err := NewSQLitePersister(":memory:")
		if err != nil {
			t.Fatalf("NewSQLitePersister failed: %v", err)
		}
		t.Cleanup(func() { p.Close() })
		return p
	})
}

func TestMemoryPersisterContract(t *testing.T) {
	runPersisterContract(t, func(t *testing.T) Persister {
		return NewMemoryPersister()
	})
}

func TestDiskPersisterContract(t *testing.T) {
	runPersisterContract(t, func(t *testing.T) Persister {
		p, err := NewDiskPersister(t.TempDir())
		if err != nil {
			t.Fatalf("NewDiskPersister failed: %v", err)
		}
		return p
	})
}

func TestDiskPersisterFilenameEncoding(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDiskPersister(dir)
	if err != nil {
		t.Fatalf("NewDiskPersister failed: %v", err)
	}

	ctx := context.Background()
	b := NewBundle("process.Process")
	if err := p.SaveCheckpoint(ctx, CheckpointID{PID: "p1", Tag: "before_wait"}, b); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	want := filepath.Join(dir, "p1.before_wait.bundle")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected checkpoint file at %q: %v", want, err)
	}
}
