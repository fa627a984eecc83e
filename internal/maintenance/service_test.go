package maintenance

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tabletalk/tabletalk/internal/storage"
	"github.com/tabletalk/tabletalk/internal/storage/memory"
)

type fakeSessions struct {
	evicted int
	keys    map[string]struct{}
	swept   chan struct{}
}

func (f *fakeSessions) Sweep(context.Context) int {
	if f.swept != nil {
		select {
		case f.swept <- struct{}{}:
		default:
		}
	}
	return f.evicted
}

func (f *fakeSessions) SnapshotKeys(context.Context) map[string]struct{} {
	return f.keys
}

func putObject(t *testing.T, store *memory.Store, key, payload string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, bytes.NewBufferString(payload), int64(len(payload)), storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put(%q) error = %v", key, err)
	}
}

func TestRunSweepOnceReportsEvictions(t *testing.T) {
	svc := &Service{Sessions: &fakeSessions{evicted: 3}}

	summary, err := svc.RunSweepOnce(context.Background())
	if err != nil {
		t.Fatalf("RunSweepOnce() error = %v", err)
	}
	if summary.SessionsEvicted != 3 {
		t.Fatalf("SessionsEvicted = %d, want 3", summary.SessionsEvicted)
	}
}

func TestScanDeletesOldOrphans(t *testing.T) {
	objects := memory.New()
	liveKey := "sessions/s-live/upload-00001/table.parquet"
	orphanKey := "sessions/s-gone/upload-00002/table.parquet"
	putObject(t, objects, liveKey, "live")
	putObject(t, objects, orphanKey, "orphan")

	svc := &Service{
		Sessions:    &fakeSessions{keys: map[string]struct{}{liveKey: {}}},
		ObjectStore: objects,
		// Clock an hour ahead so both objects are past the orphan
		// grace period.
		Clock: func() time.Time { return time.Now().Add(time.Hour) },
	}

	summary, err := svc.RunScanOnce(context.Background())
	if err != nil {
		t.Fatalf("RunScanOnce() error = %v", err)
	}
	if summary.ObjectsScanned != 2 || summary.LiveSnapshots != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.OrphansDeleted != 1 {
		t.Fatalf("OrphansDeleted = %d, want 1", summary.OrphansDeleted)
	}
	if objects.Len() != 1 {
		t.Fatalf("objects after scan = %d, want 1", objects.Len())
	}
	if _, err := objects.Stat(context.Background(), liveKey); err != nil {
		t.Fatalf("live snapshot was deleted: %v", err)
	}
}

func TestScanSparesFreshOrphans(t *testing.T) {
	objects := memory.New()
	putObject(t, objects, "sessions/s-inflight/upload-00001/table.parquet", "fresh")

	svc := &Service{
		Sessions:    &fakeSessions{},
		ObjectStore: objects,
	}

	summary, err := svc.RunScanOnce(context.Background())
	if err != nil {
		t.Fatalf("RunScanOnce() error = %v", err)
	}
	if summary.OrphansDeleted != 0 {
		t.Fatalf("OrphansDeleted = %d, want 0 (object is inside the grace period)", summary.OrphansDeleted)
	}
	if objects.Len() != 1 {
		t.Fatalf("objects after scan = %d, want 1", objects.Len())
	}
}

func TestScanReportsMissingSnapshot(t *testing.T) {
	svc := &Service{
		Sessions:    &fakeSessions{keys: map[string]struct{}{"sessions/s-1/upload-00001/table.parquet": {}}},
		ObjectStore: memory.New(),
	}

	summary, err := svc.RunScanOnce(context.Background())
	if err == nil {
		t.Fatal("RunScanOnce() error = nil, want missing snapshot failure")
	}
	if summary.MissingSnapshots != 1 {
		t.Fatalf("MissingSnapshots = %d, want 1", summary.MissingSnapshots)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error = %v, want missing snapshot message", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sessions := &fakeSessions{swept: make(chan struct{}, 1)}
	svc := &Service{
		Sessions:    sessions,
		ObjectStore: memory.New(),
		Config: Config{
			SweepInterval: time.Millisecond,
			ScanInterval:  time.Hour,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-sessions.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep cycle never ran")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
