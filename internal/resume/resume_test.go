package resume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferrocp/ferrocp/internal/strategy"
)

// TestRecordRoundTripsFieldForField is property #8: saving then loading a
// ResumeRecord round-trips field-for-field.
func TestRecordRoundTripsFieldForField(t *testing.T) {
	dir := t.TempDir()
	r := Record{
		RequestID:        "req-1",
		Source:           "/tmp/src",
		Destination:      "/tmp/dst",
		BytesTransferred: 300 << 20,
		TotalSize:        500 << 20,
		SourceModTime:    1700000000,
		LastChunkSeq:     42,
		ContentHash:      "deadbeef",
		InterruptedAt:    1700000100,
		RetryCount:       1,
		Options:          strategy.DefaultOptions(),
	}

	if err := save(dir, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := load(fileName(dir, r.RequestID))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, r)
	}
}

func TestSaveIsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	r := Record{RequestID: "req-2", Options: strategy.DefaultOptions()}
	if err := save(dir, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(fileName(dir, r.RequestID) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, got err=%v", err)
	}
}

func TestStoreResolveAcceptsMatchingSource(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "file.bin")
	content := make([]byte, 1024)
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}

	store, err := New(Config{Dir: filepath.Join(t.TempDir(), "resume")})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	r := Record{
		RequestID:        "req-resolve",
		Source:           src,
		TotalSize:        info.Size(),
		SourceModTime:    info.ModTime().Unix(),
		BytesTransferred: 512,
		InterruptedAt:    time.Now().Unix(),
	}
	if err := store.Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := store.Resolve("req-resolve", src)
	if !ok {
		t.Fatalf("expected resolve to succeed for a matching source")
	}
	if got.BytesTransferred != 512 {
		t.Fatalf("expected resumed bytes_transferred to be preserved, got %d", got.BytesTransferred)
	}
}

func TestStoreResolveDiscardsOnSizeMismatch(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "file.bin")
	if err := os.WriteFile(src, make([]byte, 1024), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	store, err := New(Config{Dir: filepath.Join(t.TempDir(), "resume")})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	r := Record{
		RequestID:     "req-mismatch",
		Source:        src,
		TotalSize:     2048, // does not match the 1024-byte file on disk
		SourceModTime: time.Now().Unix(),
		InterruptedAt: time.Now().Unix(),
	}
	if err := store.Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok := store.Resolve("req-mismatch", src); ok {
		t.Fatalf("expected resolve to reject a size-mismatched source")
	}
	if _, ok := store.Lookup("req-mismatch"); ok {
		t.Fatalf("expected the discarded record to be removed from the store")
	}
}

func TestStoreResolveDiscardsWhenRetriesExhausted(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "file.bin")
	if err := os.WriteFile(src, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	info, _ := os.Stat(src)

	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "resume")
	cfg.MaxRetries = 3
	store, err := New(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	r := Record{
		RequestID:     "req-exhausted",
		Source:        src,
		TotalSize:     info.Size(),
		SourceModTime: info.ModTime().Unix(),
		RetryCount:    3,
		InterruptedAt: time.Now().Unix(),
	}
	if err := store.Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok := store.Resolve("req-exhausted", src); ok {
		t.Fatalf("expected resolve to reject a record at the retry ceiling")
	}
}

func TestStoreSweepRemovesStaleRecords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "resume")
	cfg.MaxResumeAge = time.Millisecond
	store, err := New(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	r := Record{RequestID: "req-stale", InterruptedAt: time.Now().Add(-time.Hour).Unix()}
	if err := store.Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	store.sweep()

	if _, ok := store.Lookup("req-stale"); ok {
		t.Fatalf("expected sweep to remove a stale record")
	}
}

func TestStoreDeleteOnSuccessfulCompletion(t *testing.T) {
	store, err := New(Config{Dir: filepath.Join(t.TempDir(), "resume")})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	r := Record{RequestID: "req-done", InterruptedAt: time.Now().Unix()}
	if err := store.Save(r); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete("req-done"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Lookup("req-done"); ok {
		t.Fatalf("expected deleted record to be gone")
	}
	if _, err := os.Stat(fileName(store.cfg.Dir, "req-done")); !os.IsNotExist(err) {
		t.Fatalf("expected the on-disk file to be removed too")
	}
}

func TestNewLoadsRecordsAlreadyOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "resume")
	r := Record{RequestID: "req-preexisting", InterruptedAt: time.Now().Unix(), Options: strategy.DefaultOptions()}
	if err := save(dir, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	store, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.Lookup("req-preexisting"); !ok {
		t.Fatalf("expected a fresh Store to pick up records already on disk")
	}
}
