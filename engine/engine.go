package engine

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/whisper-server/provider"
)

// Engine turns a normalized audio file into text. Engines are expensive to
// build and are owned by the Cache, which calls Close when it evicts them.
type Engine interface {
	Transcribe(ctx context.Context, path string, params Params) (*Result, error)
	Close() error
}

// Backend builds engines for one inference technology. Backends are
// registered by name in a provider.Registry.
type Backend interface {
	provider.Provider
	Load(ctx context.Context, spec Spec) (Engine, error)
}

// Loader constructs the engine described by spec.
type Loader func(ctx context.Context, spec Spec) (Engine, error)

// Spec describes the engine to construct for one identifier.
type Spec struct {
	// ID is the client-facing identifier ("whisper-1").
	ID string `json:"id"`
	// Model is the backend model reference ("openai/whisper-large-v3").
	Model       string `json:"model"`
	Device      Device `json:"device"`
	ComputeType string `json:"compute_type"`
	// CostHint is the number of transcriptions the engine may run at once.
	CostHint int `json:"cost_hint"`
}

// Params are the decoding parameters passed to every transcription.
type Params struct {
	// Language is an ISO code; empty means detect.
	Language    string  `json:"language,omitempty"`
	Temperature float64 `json:"temperature"`
	BeamSize    int     `json:"beam_size"`
	DoSample    bool    `json:"do_sample"`
	BatchSize   int     `json:"batch_size"`
}

// DeterministicParams returns greedy decoding settings: no sampling and the
// narrowest beam. "auto" and "" both mean language detection.
func DeterministicParams(language string, batchSize int) Params {
	language = strings.TrimSpace(language)
	if strings.EqualFold(language, "auto") {
		language = ""
	}
	return Params{
		Language:    language,
		Temperature: 0,
		BeamSize:    1,
		DoSample:    false,
		BatchSize:   batchSize,
	}
}

// Result is what an engine returns for one file.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`

	// Elapsed is the wall time of the engine call, set by Handle.Transcribe.
	Elapsed time.Duration `json:"-"`
}

// Segment is a time-aligned portion of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
