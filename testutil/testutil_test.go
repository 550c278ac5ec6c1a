package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/kbukum/whisper-server/audio"
	"github.com/kbukum/whisper-server/component"
)

func TestFixturesSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want audio.Format
	}{
		{"mp3", MP3(2048), audio.FormatMP3},
		{"wav", WAV(t, 16000, 1, make([]float64, 1024)), audio.FormatWAV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audio.Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
	if _, ok := audio.Identify(Garbage(2048)); ok {
		t.Error("garbage should not be identified")
	}
}

func TestWAVDecodes(t *testing.T) {
	data := WAV(t, 8000, 2, []float64{0, 0.5, -0.5, 1})
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}
	if dec.SampleRate != 8000 || dec.NumChans != 2 {
		t.Errorf("unexpected header rate=%d chans=%d", dec.SampleRate, dec.NumChans)
	}
}

type lifecycleRecorder struct {
	started, stopped bool
}

func (p *lifecycleRecorder) Name() string { return "recorder" }
func (p *lifecycleRecorder) Start(context.Context) error {
	p.started = true
	return nil
}
func (p *lifecycleRecorder) Stop(context.Context) error {
	p.stopped = true
	return nil
}
func (p *lifecycleRecorder) Health(context.Context) component.Health {
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

func TestStartStopsOnCleanup(t *testing.T) {
	p := &lifecycleRecorder{}
	t.Run("inner", func(t *testing.T) {
		Start(t, p)
		if !p.started {
			t.Fatal("expected component to be started")
		}
	})
	if !p.stopped {
		t.Error("expected component to be stopped after the subtest")
	}
}

func TestEventually(t *testing.T) {
	start := time.Now()
	Eventually(t, time.Second, func() bool { return time.Since(start) > 20*time.Millisecond })
}
