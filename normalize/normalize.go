package normalize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/logger"
)

// TargetSampleRate is the rate Whisper models expect.
const TargetSampleRate = 16000

// SilenceThresholdDB is how far below the peak a frame must be to count as
// leading or trailing silence.
const SilenceThresholdDB = 40.0

// Normalizer prepares an audio file for inference. A false result is a
// declared failure: the caller keeps using the input file.
type Normalizer interface {
	Name() string
	Normalize(ctx context.Context, path string) (string, bool)
}

// Kinds accepted by New.
const (
	KindAuto   = "auto"
	KindFFmpeg = "ffmpeg"
	KindNative = "native"
	KindNone   = "none"
)

// Kinds lists the normalizer names New accepts.
var Kinds = []string{KindAuto, KindFFmpeg, KindNative, KindNone}

// OutputPath returns where the normalized version of path is written.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_preprocessed.wav"
}

// Config selects and tunes the normalizer.
type Config struct {
	Kind string `mapstructure:"kind" validate:"oneof=auto ffmpeg native none"`
	// FFmpegPath is the ffmpeg binary; looked up on PATH when empty.
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// New builds the normalizer named by cfg.Kind. Native normalization works
// on fs; ffmpeg always works on the OS filesystem.
func New(cfg Config, fs afero.Fs, log *logger.Logger) (Normalizer, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("normalizer")

	switch cfg.Kind {
	case KindFFmpeg:
		return NewFFmpeg(cfg.FFmpegPath, log), nil
	case KindNative:
		return NewNative(fs, log), nil
	case KindNone:
		return None{}, nil
	case "", KindAuto:
		ff := NewFFmpeg(cfg.FFmpegPath, log)
		if _, isOs := fs.(*afero.OsFs); isOs && ff.Available() {
			return ff, nil
		}
		return NewNative(fs, log), nil
	default:
		return nil, fmt.Errorf("unknown normalizer %q", cfg.Kind)
	}
}

// None leaves audio untouched.
type None struct{}

func (None) Name() string { return KindNone }

func (None) Normalize(ctx context.Context, path string) (string, bool) {
	return path, true
}
