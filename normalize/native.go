package normalize

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/whisper-server/logger"
)

// Frame geometry used for silence detection.
const (
	frameLength = 2048
	hopLength   = 512
)

// Native normalizes PCM WAV input without external tools. Other containers
// are a declared failure.
type Native struct {
	fs  afero.Fs
	log *logger.Logger
}

// NewNative creates a native normalizer reading and writing through fs.
func NewNative(fs afero.Fs, log *logger.Logger) *Native {
	if log == nil {
		log = logger.Nop()
	}
	return &Native{fs: fs, log: log}
}

func (n *Native) Name() string { return KindNative }

func (n *Native) Normalize(ctx context.Context, path string) (string, bool) {
	out := OutputPath(path)
	if err := n.normalize(ctx, path, out); err != nil {
		_ = n.fs.Remove(out)
		n.log.Warn("native normalization failed", logger.Fields(
			logger.FieldPath, path,
			logger.FieldError, err.Error(),
		))
		return "", false
	}
	return out, true
}

func (n *Native) normalize(ctx context.Context, in, out string) error {
	samples, rate, err := n.read(in)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	samples = Resample(samples, rate, TargetSampleRate)
	PeakNormalize(samples)
	samples = TrimSilence(samples, SilenceThresholdDB)
	if len(samples) == 0 {
		return fmt.Errorf("no audio left after trimming silence")
	}
	return n.write(out, samples)
}

func (n *Native) read(path string) ([]float64, int, error) {
	f, err := n.fs.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a PCM WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, 0, fmt.Errorf("wav has no usable format")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	return Mixdown(buf.Data, buf.Format.NumChannels, depth), buf.Format.SampleRate, nil
}

func (n *Native) write(path string, samples []float64) error {
	f, err := n.fs.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, TargetSampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(clamp(s) * math.MaxInt16))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: TargetSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// Mixdown averages interleaved integer PCM into mono samples in [-1, 1].
func Mixdown(data []int, channels, bitDepth int) []float64 {
	scale := 1 / math.Pow(2, float64(bitDepth-1))
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out
}

// Resample converts samples from one rate to another by linear
// interpolation.
func Resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// PeakNormalize scales samples in place so the largest magnitude is 1.
func PeakNormalize(samples []float64) {
	if len(samples) == 0 {
		return
	}
	peak := math.Max(math.Abs(floats.Max(samples)), math.Abs(floats.Min(samples)))
	if peak == 0 {
		return
	}
	floats.Scale(1/peak, samples)
}

// TrimSilence drops leading and trailing frames whose RMS is more than
// topDB below the loudest frame.
func TrimSilence(samples []float64, topDB float64) []float64 {
	if len(samples) == 0 {
		return samples
	}

	var rms []float64
	for start := 0; start < len(samples); start += hopLength {
		end := min(start+frameLength, len(samples))
		frame := samples[start:end]
		rms = append(rms, math.Sqrt(floats.Dot(frame, frame)/float64(len(frame))))
	}
	ref := floats.Max(rms)
	if ref == 0 {
		return samples[:0]
	}

	threshold := ref * math.Pow(10, -topDB/20)
	first, last := -1, -1
	for i, v := range rms {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return samples[:0]
	}
	start := first * hopLength
	end := min(last*hopLength+frameLength, len(samples))
	return samples[start:end]
}

func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
