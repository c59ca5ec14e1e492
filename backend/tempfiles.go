package backend

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TempManager owns the work directory under which every job gets its own arena.
type TempManager struct {
	root   string
	logger *slog.Logger
}

func NewTempManager(root string, logger *slog.Logger) *TempManager {
	if logger == nil {
		logger = Logger
	}
	if root == "" {
		root = filepath.Join(os.TempDir(), "mediabot")
	}
	return &TempManager{root: root, logger: componentLogger(logger, "tempfiles")}
}

// Root returns the work directory.
func (m *TempManager) Root() string {
	return m.root
}

// NewArena creates <root>/<requestID>-<uuid>.
func (m *TempManager) NewArena(requestID int64) (*Arena, error) {
	name := fmt.Sprintf("%d-%s", requestID, uuid.New().String())
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &Arena{
		id:      name,
		dir:     dir,
		tracked: make(map[string]struct{}),
		logger:  m.logger.With(slog.String("arena", name)),
	}, nil
}

// Sweep removes arenas older than maxAge, left behind by a crash.
// It returns how many were removed.
func (m *TempManager) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("sweep failed", slog.Any("error", err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("failed to remove stale arena", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("removed stale arenas", slog.Int("count", removed))
	}
	return removed
}

// Arena is the directory that holds every file of one job.
type Arena struct {
	id     string
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	tracked map[string]struct{}
	closed  bool
}

// ID returns the arena name, also used as the job id.
func (a *Arena) ID() string {
	return a.id
}

// Dir returns the arena directory.
func (a *Arena) Dir() string {
	return a.dir
}

// Path returns the path of name inside the arena. name is reduced to its
// base so it cannot escape the directory.
func (a *Arena) Path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

// Track registers a file for removal on Cleanup.
func (a *Arena) Track(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	a.tracked[path] = struct{}{}
	a.mu.Unlock()
}

// Release removes a file now. Failures are logged.
func (a *Arena) Release(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	delete(a.tracked, path)
	a.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to remove file", slog.String("path", path), slog.Any("error", err))
	}
}

// Tracked returns the files currently registered.
func (a *Arena) Tracked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.tracked))
	for p := range a.tracked {
		out = append(out, p)
	}
	return out
}

// Cleanup removes tracked files and then the arena directory. It never
// returns an error and is safe to call more than once.
func (a *Arena) Cleanup() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	paths := make([]string, 0, len(a.tracked))
	for p := range a.tracked {
		paths = append(paths, p)
	}
	a.tracked = map[string]struct{}{}
	a.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove file", slog.String("path", p), slog.Any("error", err))
		}
	}
	if err := os.RemoveAll(a.dir); err != nil {
		a.logger.Warn("failed to remove arena", slog.String("dir", a.dir), slog.Any("error", err))
		return
	}
	a.logger.Debug("arena cleaned up")
}
