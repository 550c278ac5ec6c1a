package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/logger"
)

const filePrefix = "whisper-"

// Store creates and removes request-scoped audio files in one directory.
type Store struct {
	fs  afero.Fs
	dir string
	log *logger.Logger
}

var _ component.Component = (*Store)(nil)

// NewStore creates a store rooted at dir. An empty dir means the OS temp
// directory.
func NewStore(fs afero.Fs, dir string, log *logger.Logger) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{fs: fs, dir: dir, log: log.WithComponent("scratch")}
}

// Fs returns the filesystem the store writes to.
func (s *Store) Fs() afero.Fs { return s.fs }

// Dir returns the scratch directory.
func (s *Store) Dir() string { return s.dir }

// Write stores data in a new file with the given extension (".mp3") and
// returns its path.
func (s *Store) Write(data []byte, ext string) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(s.dir, filePrefix+uuid.NewString()+ext)
	if err := afero.WriteFile(s.fs, path, data, 0o600); err != nil {
		_ = s.fs.Remove(path)
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

// Remove deletes path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Session returns a tracker for the files of one request.
func (s *Store) Session() *Session {
	return &Session{store: s}
}

func (s *Store) Name() string { return "scratch" }

// Start creates the scratch directory and removes files left behind by a
// previous process.
func (s *Store) Start(ctx context.Context) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir %s: %w", s.dir, err)
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("read scratch dir %s: %w", s.dir, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		if err := s.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("removed stale scratch files", logger.Fields("count", removed, logger.FieldPath, s.dir))
	}
	return nil
}

func (s *Store) Stop(ctx context.Context) error { return nil }

func (s *Store) Health(ctx context.Context) component.Health {
	if _, err := s.fs.Stat(s.dir); err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy, Details: map[string]any{"dir": s.dir}}
}

// Session tracks the scratch files created for one request so they can be
// released together.
type Session struct {
	store *Store

	mu    sync.Mutex
	paths []string
}

// Write stores data and tracks the new file.
func (s *Session) Write(data []byte, ext string) (string, error) {
	path, err := s.store.Write(data, ext)
	if err != nil {
		return "", err
	}
	s.Track(path)
	return path, nil
}

// Track adds a file created outside the store, such as normalizer output.
// Empty and already tracked paths are ignored.
func (s *Session) Track(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		if p == path {
			return
		}
	}
	s.paths = append(s.paths, path)
}

// Paths returns the tracked files in creation order.
func (s *Session) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release removes every tracked file. Failures are logged and never
// returned, and calling Release again is a no-op.
func (s *Session) Release() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		if err := s.store.Remove(p); err != nil {
			s.store.log.Warn("failed to remove scratch file", logger.Fields(
				logger.FieldPath, p,
				logger.FieldError, err.Error(),
			))
		}
	}
}
