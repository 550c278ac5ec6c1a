package scratch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/component"
)

func TestWriteAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/scratch", nil)

	path, err := s.Write([]byte("audio"), ".mp3")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != "/scratch" || !strings.HasSuffix(path, ".mp3") {
		t.Errorf("unexpected path %q", path)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil || string(data) != "audio" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}

	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(path); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestWriteUniqueNames(t *testing.T) {
	s := NewStore(afero.NewMemMapFs(), "/scratch", nil)
	a, _ := s.Write([]byte("a"), ".wav")
	b, _ := s.Write([]byte("b"), ".wav")
	if a == b {
		t.Error("expected distinct paths")
	}
}

func TestWriteFailure(t *testing.T) {
	s := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/scratch", nil)
	if _, err := s.Write([]byte("a"), ".wav"); err == nil {
		t.Error("expected write to a read-only fs to fail")
	}
}

func TestSessionReleaseRemovesEverything(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "/scratch", nil)
	sess := s.Session()

	original, err := sess.Write([]byte("raw"), ".mp3")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	normalized := strings.TrimSuffix(original, ".mp3") + "_preprocessed.wav"
	_ = afero.WriteFile(fs, normalized, []byte("pcm"), 0o600)
	sess.Track(normalized)
	sess.Track(normalized)
	sess.Track("")

	if got := len(sess.Paths()); got != 2 {
		t.Fatalf("expected 2 tracked paths, got %d", got)
	}

	sess.Release()
	sess.Release()

	for _, p := range []string{original, normalized} {
		if ok, _ := afero.Exists(fs, p); ok {
			t.Errorf("%s should be removed", p)
		}
	}
	if len(sess.Paths()) != 0 {
		t.Error("release should forget tracked paths")
	}
}

type failingRemoveFs struct {
	afero.Fs
}

func (f failingRemoveFs) Remove(name string) error { return errors.New("device busy") }

func TestSessionReleaseSwallowsErrors(t *testing.T) {
	fs := failingRemoveFs{afero.NewMemMapFs()}
	sess := NewStore(fs, "/scratch", nil).Session()
	if _, err := sess.Write([]byte("raw"), ".mp3"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sess.Release()
}

func TestReleaseToleratesMissingFiles(t *testing.T) {
	sess := NewStore(afero.NewMemMapFs(), "/scratch", nil).Session()
	sess.Track("/scratch/never-created.wav")
	sess.Release()
}

func TestStartSweepsStaleFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/scratch/whisper-old.mp3", []byte("x"), 0o600)
	_ = afero.WriteFile(fs, "/scratch/keep.txt", []byte("x"), 0o600)

	s := NewStore(fs, "/scratch", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/scratch/whisper-old.mp3"); ok {
		t.Error("stale scratch file should be removed")
	}
	if ok, _ := afero.Exists(fs, "/scratch/keep.txt"); !ok {
		t.Error("foreign files must be kept")
	}
	if h := s.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
}

func TestDefaultDir(t *testing.T) {
	if NewStore(afero.NewMemMapFs(), "", nil).Dir() != os.TempDir() {
		t.Error("expected OS temp dir by default")
	}
}
