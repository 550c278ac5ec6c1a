package normalize

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/process"
)

// Runner executes a command and returns what it printed.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func processRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	res, err := process.Run(ctx, process.Command{Binary: name, Args: args, GracePeriod: 2 * time.Second})
	return res.Output(), err
}

// FFmpeg converts any container ffmpeg understands to 16 kHz mono WAV with
// silence trimmed at both ends and loudness normalized.
type FFmpeg struct {
	binary string
	run    Runner
	log    *logger.Logger
}

// NewFFmpeg creates an ffmpeg normalizer. An empty binary means "ffmpeg"
// on PATH.
func NewFFmpeg(binary string, log *logger.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FFmpeg{binary: binary, run: processRunner, log: log}
}

// WithRunner replaces command execution, for tests.
func (f *FFmpeg) WithRunner(run Runner) *FFmpeg {
	f.run = run
	return f
}

func (f *FFmpeg) Name() string { return KindFFmpeg }

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	return process.Available(f.binary)
}

func (f *FFmpeg) Normalize(ctx context.Context, path string) (string, bool) {
	out := OutputPath(path)
	out2, err := f.run(ctx, f.binary, Args(path, out)...)
	if err != nil {
		f.log.Warn("ffmpeg normalization failed", logger.Fields(
			logger.FieldPath, path,
			logger.FieldError, err.Error(),
			"output", truncate(strings.TrimSpace(string(out2)), 512),
		))
		return "", false
	}
	return out, true
}

// Args returns the ffmpeg arguments used to normalize in into out.
func Args(in, out string) []string {
	trim := fmt.Sprintf("silenceremove=start_periods=1:start_threshold=-%gdB", SilenceThresholdDB)
	filter := strings.Join([]string{trim, "areverse", trim, "areverse", "dynaudnorm"}, ",")
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-af", filter,
		"-c:a", "pcm_s16le",
		out,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
