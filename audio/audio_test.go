package audio

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/kbukum/whisper-server/errors"
)

func padTo(prefix []byte, n int) []byte {
	b := make([]byte, n)
	copy(b, prefix)
	return b
}

func TestSniff(t *testing.T) {
	id3AtOffset := make([]byte, 200)
	copy(id3AtOffset[50:], "ID3")
	id3TooFar := make([]byte, 200)
	copy(id3TooFar[130:], "ID3")
	ftypAtOffset := make([]byte, 64)
	copy(ftypAtOffset[4:], "ftyp")

	tests := []struct {
		name       string
		in         []byte
		want       Format
		identified bool
	}{
		{"riff", padTo([]byte{0x52, 0x49, 0x46, 0x46}, 64), FormatWAV, true},
		{"mp3 frame sync fb", padTo([]byte{0xFF, 0xFB, 0x90, 0x00}, 64), FormatMP3, true},
		{"mp3 frame sync f3", padTo([]byte{0xFF, 0xF3}, 64), FormatMP3, true},
		{"mp3 frame sync f2", padTo([]byte{0xFF, 0xF2}, 64), FormatMP3, true},
		{"id3 header", padTo([]byte("ID3"), 64), FormatMP3, true},
		{"id3 at offset", id3AtOffset, FormatMP3, true},
		{"id3 beyond window", id3TooFar, DefaultFormat, false},
		{"ftyp at start", padTo([]byte("ftyp"), 64), FormatM4A, true},
		{"ftyp at offset", ftypAtOffset, FormatM4A, true},
		{"mdat", padTo([]byte("mdat"), 64), FormatM4A, true},
		{"flac", padTo([]byte("fLaC"), 64), FormatFLAC, true},
		{"ogg", padTo([]byte("OggS"), 64), FormatOGG, true},
		{"webm", padTo([]byte{0x1A, 0x45, 0xDF, 0xA3}, 64), FormatWebM, true},
		{"all zeros", make([]byte, 2048), DefaultFormat, false},
		{"empty", nil, DefaultFormat, false},
		{"short", []byte{0xFF}, DefaultFormat, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Identify(tt.in)
			if got != tt.want || ok != tt.identified {
				t.Errorf("Identify() = %q, %v; want %q, %v", got, ok, tt.want, tt.identified)
			}
			if Sniff(tt.in) != tt.want {
				t.Errorf("Sniff() = %q, want %q", Sniff(tt.in), tt.want)
			}
		})
	}
}

func TestFormatExtension(t *testing.T) {
	if FormatWAV.Extension() != ".wav" {
		t.Errorf("unexpected extension %q", FormatWAV.Extension())
	}
}

func encode(n int, prefix ...byte) string {
	return base64.StdEncoding.EncodeToString(padTo(prefix, n))
}

func TestGatekeeperValidate(t *testing.T) {
	g := NewGatekeeper(10, nil)

	tests := []struct {
		name    string
		payload string
		kind    Kind
		code    errors.ErrorCode
		msg     string
	}{
		{"empty", "", KindMissingAudio, errors.ErrCodeMissingAudio, "Audio data is required"},
		{"whitespace", "  \n", KindMissingAudio, errors.ErrCodeMissingAudio, "Audio data is required"},
		{"not base64", "this is not base64!!", KindMalformedEncoding, errors.ErrCodeMalformedEncoding, "Invalid base64 encoding"},
		{"too large", encode(15 * 1024 * 1024), KindTooLarge, errors.ErrCodeAudioTooLarge, "Maximum size is 10MB"},
		{"one byte over the limit", encode(10*1024*1024 + 1), KindTooLarge, errors.ErrCodeAudioTooLarge, "Maximum size is 10MB"},
		{"exactly the limit", encode(10 * 1024 * 1024), KindNone, "", ""},
		{"1023 bytes", encode(1023), KindTooSmall, errors.ErrCodeAudioTooSmall, "Minimum size is 1KB"},
		{"1024 bytes", encode(1024), KindNone, "", ""},
		{"unidentified accepted", encode(4096), KindNone, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, clip := g.Validate(tt.payload)
			if v.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", v.Kind, tt.kind)
			}
			if tt.kind == KindNone {
				if !v.Accepted || clip == nil {
					t.Fatal("expected acceptance with clip")
				}
				if v.Err() != nil {
					t.Error("accepted verdict should have no error")
				}
				return
			}
			if v.Accepted || clip != nil {
				t.Fatal("rejected verdict must not carry a clip")
			}
			if !strings.Contains(v.Message, tt.msg) {
				t.Errorf("message %q does not contain %q", v.Message, tt.msg)
			}
			appErr := v.Err()
			if appErr == nil || appErr.Code != tt.code {
				t.Fatalf("Err() = %v, want code %s", appErr, tt.code)
			}
			if appErr.HTTPStatus != 400 {
				t.Errorf("expected 400, got %d", appErr.HTTPStatus)
			}
		})
	}
}

func TestGatekeeperTooLargeMessageUsesLimit(t *testing.T) {
	g := NewGatekeeper(2, nil)
	v, _ := g.Validate(encode(3 * 1024 * 1024))
	if v.Kind != KindTooLarge || !strings.Contains(v.Message, "2MB") {
		t.Errorf("expected limit in message, got %q", v.Message)
	}
	if g.MaxMB() != 2 {
		t.Errorf("MaxMB() = %d", g.MaxMB())
	}
}

func TestGatekeeperReturnsDecodedClip(t *testing.T) {
	raw := padTo([]byte{0xFF, 0xFB, 0x90, 0x00}, 2000)
	v, clip := NewGatekeeper(10, nil).Validate(base64.StdEncoding.EncodeToString(raw))
	if !v.Accepted {
		t.Fatalf("expected acceptance, got %+v", v)
	}
	if !bytes.Equal(clip.Data, raw) || clip.Size() != 2000 {
		t.Error("clip should hold the decoded bytes")
	}
	if clip.Format != FormatMP3 || !clip.Identified {
		t.Errorf("expected identified mp3, got %s/%v", clip.Format, clip.Identified)
	}
}

func TestDecode(t *testing.T) {
	raw := []byte("hello whisper!")
	std := base64.StdEncoding.EncodeToString(raw)
	unpadded := base64.RawStdEncoding.EncodeToString(raw)
	wrapped := std[:8] + "\n" + std[8:]

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"standard", std, false},
		{"unpadded", unpadded, false},
		{"data uri", "data:audio/mpeg;base64," + std, false},
		{"line wrapped", wrapped, false},
		{"surrounding space", "  " + std + "\n", false},
		{"invalid chars", "@@@@", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("Decode() = %q", got)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindTooLarge.String() != "too_large" || Kind(99).String() != "unknown" {
		t.Error("unexpected kind names")
	}
}
