package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Load when no run with the given ID exists.
var ErrNotFound = errors.New("run not found")

// DiskStore writes RunResult as JSON files to a directory. When no
// directory is given, a temp directory is created lazily on first use.
// Each save prunes the directory down to the newest keep results.
type DiskStore struct {
	mu   sync.Mutex
	dir  string
	keep int
}

// NewDiskStore creates a DiskStore rooted at dir that retains at most keep
// results. An empty dir selects a lazily-created temp directory; keep <= 0
// disables pruning.
func NewDiskStore(dir string, keep int) *DiskStore {
	return &DiskStore{dir: dir, keep: keep}
}

// Save writes a RunResult as a JSON file to disk.
func (s *DiskStore) Save(result *RunResult) error {
	if err := validID(result.ID); err != nil {
		return err
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result %s: %w", result.ID, err)
	}
	path := filepath.Join(dir, result.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}

	// The file time orders results for pruning, so pin it to the run start.
	stamp := result.StartedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		return fmt.Errorf("stamping result %s: %w", result.ID, err)
	}
	return s.prune(dir)
}

// prune removes the oldest results beyond the retention limit.
func (s *DiskStore) prune(dir string) error {
	if s.keep <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing results: %w", err)
	}

	type stored struct {
		name string
		mod  time.Time
	}
	var files []stored
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		files = append(files, stored{name: e.Name(), mod: info.ModTime()})
	}
	if len(files) <= s.keep {
		return nil
	}

	// Newest first; names break ties so the order is stable.
	sort.Slice(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.After(files[j].mod)
		}
		return files[i].name > files[j].name
	})

	var errs []error
	for _, f := range files[s.keep:] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pruning results: %w", err)
	}
	return nil
}

// Load reads a RunResult from disk.
func (s *DiskStore) Load(runID string) (*RunResult, error) {
	if err := validID(runID); err != nil {
		return nil, err
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("reading result %s: %w", runID, err)
	}
	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling result %s: %w", runID, err)
	}
	return &result, nil
}

// Dir returns the directory results are written to, creating it if needed.
func (s *DiskStore) Dir() (string, error) {
	return s.ensureDir()
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating result directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "cogrun-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}

// validID rejects IDs that could escape the store directory.
func validID(id string) error {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid run ID %q", id)
	}
	return nil
}
