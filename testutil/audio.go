package testutil

import (
	"encoding/base64"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// MP3 returns size bytes that start with an MPEG-1 Layer III frame header.
func MP3(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0xFF, 0xFB, 0x90, 0x00})
	return b
}

// Base64MP3 is MP3 encoded for a JSON request body.
func Base64MP3(size int) string {
	return base64.StdEncoding.EncodeToString(MP3(size))
}

// Garbage returns size bytes that match no known audio signature.
func Garbage(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

// WAV encodes frames (interleaved, in [-1, 1]) as 16-bit PCM.
func WAV(t testing.TB, rate, channels int, frames []float64) []byte {
	t.Helper()
	fs := afero.NewMemMapFs()
	const path = "/fixture.wav"
	WriteWAV(t, fs, path, rate, channels, frames)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read wav fixture: %v", err)
	}
	return data
}

// WriteWAV writes a 16-bit PCM WAV file to fs.
func WriteWAV(t testing.TB, fs afero.Fs, path string, rate, channels int, frames []float64) {
	t.Helper()
	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	data := make([]int, len(frames))
	for i, v := range frames {
		data[i] = int(v * 32767)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder %s: %v", path, err)
	}
}
