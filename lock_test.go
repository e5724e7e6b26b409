// Shard lock tests.
//
// flock is per open file description, so two acquireLock calls in one
// process behave like two processes: each opens its own descriptor.
package linechunk

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestLockExclusiveBlocks verifies a second exclusive lock waits for the
// first to be released.
func TestLockExclusiveBlocks(t *testing.T) {
	name := filepath.Join(t.TempDir(), "m.json.lock")

	l1, err := acquireLock(Local{}, name, LockExclusive, true)
	if err != nil || l1 == nil {
		t.Fatalf("first lock: %v", err)
	}

	done := make(chan struct{})
	go func() {
		l2, err := acquireLock(Local{}, name, LockExclusive, true)
		if err != nil {
			t.Errorf("second lock: %v", err)
		}
		l2.release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(100 * time.Millisecond):
	}

	if err := l1.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

// TestLockSharedCoexist verifies readers do not block each other.
func TestLockSharedCoexist(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shared LockFileEx semantics differ across handles")
	}
	name := filepath.Join(t.TempDir(), "m.json.lock")

	l1, err := acquireLock(Local{}, name, LockShared, true)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer l1.release()

	done := make(chan struct{})
	go func() {
		l2, err := acquireLock(Local{}, name, LockShared, false)
		if err != nil {
			t.Errorf("second lock: %v", err)
		}
		l2.release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shared lock blocked by another shared lock")
	}
}

// TestLockMissingNoCreate verifies that a reader does not create the lock
// file and simply runs unlocked when nothing has been sharded yet.
func TestLockMissingNoCreate(t *testing.T) {
	name := filepath.Join(t.TempDir(), "m.json.lock")

	l, err := acquireLock(Local{}, name, LockShared, false)
	if err != nil || l != nil {
		t.Fatalf("acquireLock = %v, %v, want nil, nil", l, err)
	}
	if (Local{}).Exists(name) {
		t.Error("lock file created by a reader")
	}
	if err := l.release(); err != nil {
		t.Errorf("release on nil lock: %v", err)
	}
}

func TestLockReleaseTwice(t *testing.T) {
	l, err := acquireLock(Local{}, filepath.Join(t.TempDir(), "x.lock"), LockExclusive, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.release(); err != nil {
		t.Errorf("second release: %v", err)
	}
}

// TestShardWaitsForLock verifies that Shard blocks while another holder
// has the output locked, then proceeds once it is released.
func TestShardWaitsForLock(t *testing.T) {
	src := writeCorpus(t, tenLines())
	dir := t.TempDir()

	held, err := acquireLock(Local{}, lockPath(ManifestPath(dir, src)), LockExclusive, true)
	if err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := std.Shard(context.Background(), src, dir, ShardOptions{Chunks: 2})
		errc <- err
	}()

	select {
	case err := <-errc:
		t.Fatalf("Shard finished while output was locked: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	held.release()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Shard: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shard did not resume after release")
	}
}
