package resume

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// Config tunes the store's directory, retry ceiling and retention per
// §6.4's `resume.*` options.
type Config struct {
	Dir             string
	MaxRetries      int
	MaxResumeAge    time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig mirrors §4.8/§6.3's defaults.
func DefaultConfig() Config {
	return Config{
		Dir:             ".ferrocp_resume",
		MaxRetries:      3,
		MaxResumeAge:    24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// Store owns the resume directory's records. The in-memory map is a weak
// mirror of the on-disk files: every mutating call writes through to disk
// first and only then updates the map, so a crash between the two leaves
// disk as the source of truth for the next Store that scans the directory.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	records map[string]Record

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Store and loads any records already on disk (e.g. left
// behind by a prior process). It does not start the cleanup loop; call
// Run for that.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		cfg.Dir = ".ferrocp_resume"
	}
	if cfg.MaxResumeAge <= 0 {
		cfg.MaxResumeAge = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	s := &Store{
		cfg:     cfg,
		records: make(map[string]Record),
		stopCh:  make(chan struct{}),
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, ferrors.Wrap(ferrors.CodeIO, "create resume dir", err).WithComponent("resume.store").WithPath(cfg.Dir)
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return ferrors.Wrap(ferrors.CodeIO, "scan resume dir", err).WithComponent("resume.store").WithPath(s.cfg.Dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".resume") {
			continue
		}
		r, err := load(filepath.Join(s.cfg.Dir, e.Name()))
		if err != nil {
			// A corrupt or partially-written record is skipped, not
			// fatal to the whole store.
			continue
		}
		s.records[r.RequestID] = r
	}
	return nil
}

// Save persists r atomically and updates the in-memory mirror.
func (s *Store) Save(r Record) error {
	if err := save(s.cfg.Dir, r); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[r.RequestID] = r
	s.mu.Unlock()
	return nil
}

// Delete removes a record, e.g. on successful task completion.
func (s *Store) Delete(requestID string) error {
	if err := remove(fileName(s.cfg.Dir, requestID)); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, requestID)
	s.mu.Unlock()
	return nil
}

// Lookup returns the record for requestID, if any, without validating it
// against the live source file.
func (s *Store) Lookup(requestID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[requestID]
	return r, ok
}

// Resolve implements §4.8's fresh-submission contract: a record is usable
// only if it is within max_resume_age, retry_count is still under the
// configured ceiling, and the source file's size and modification time
// still match what was recorded. A stale or mismatched record is
// discarded (deleted) rather than silently ignored, so a later scan
// doesn't keep re-evaluating it.
func (s *Store) Resolve(requestID, source string) (Record, bool) {
	r, ok := s.Lookup(requestID)
	if !ok {
		return Record{}, false
	}

	if !r.validAt(time.Now(), s.cfg.MaxResumeAge) || r.RetryCount >= s.cfg.MaxRetries {
		_ = s.Delete(requestID)
		return Record{}, false
	}

	info, err := os.Stat(source)
	if err != nil {
		_ = s.Delete(requestID)
		return Record{}, false
	}
	if info.Size() != r.TotalSize || info.ModTime().Unix() != r.SourceModTime {
		_ = s.Delete(requestID)
		return Record{}, false
	}

	return r, true
}

// Run drives the age-based cleanup sweep until ctx-equivalent Stop is
// called. No component performs busy-waiting: this is an explicit
// interval timer, default 5 minutes per §5.
func (s *Store) Run() {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Stop halts the cleanup loop. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Store) sweep() {
	now := time.Now()

	s.mu.RLock()
	var stale []string
	for id, r := range s.records {
		if !r.validAt(now, s.cfg.MaxResumeAge) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		_ = s.Delete(id)
	}
}
