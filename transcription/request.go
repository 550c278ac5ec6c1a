package transcription

import (
	"encoding/json"
	"strings"

	"github.com/kbukum/whisper-server/errors"
)

// Request is the body accepted by the transcription endpoints. Audio may
// arrive in any of three places; see ExtractAudio.
type Request struct {
	Model        string        `json:"model" validate:"omitempty,max=64"`
	Audio        string        `json:"audio,omitempty"`
	AudioOptions *AudioOptions `json:"audio_options,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
	// Language is an ISO code. Empty or "auto" means detection.
	Language string `json:"language,omitempty" validate:"omitempty,language"`
}

// AudioOptions is the nested form {"audio_options": {"data": "..."}}.
type AudioOptions struct {
	Data string `json:"data"`
}

// Message is one chat-style message. Content is a string, a list of parts,
// or a single object; only the last two can carry audio.
type Message struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ContentPart is one entry of a list-shaped message content.
type ContentPart struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	// Both spellings are seen in the wild.
	InputAudio      *AudioData `json:"inputAudio,omitempty"`
	InputAudioSnake *AudioData `json:"input_audio,omitempty"`
}

// AudioData holds an encoded clip.
type AudioData struct {
	Data   string `json:"data"`
	Format string `json:"format,omitempty"`
}

// ExtractAudio returns the encoded audio payload. The first non-empty value
// wins, in this order: the top-level audio field, audio_options.data, then
// the messages in order. No value fails with MISSING_AUDIO.
func (r *Request) ExtractAudio() (string, error) {
	if r == nil {
		return "", errors.MissingAudio()
	}
	if present(r.Audio) {
		return r.Audio, nil
	}
	if r.AudioOptions != nil && present(r.AudioOptions.Data) {
		return r.AudioOptions.Data, nil
	}
	for _, m := range r.Messages {
		if data := m.audio(); data != "" {
			return data, nil
		}
	}
	return "", errors.MissingAudio()
}

func (m Message) audio() string {
	raw := []byte(strings.TrimSpace(string(m.Content)))
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return ""
		}
		for _, p := range parts {
			if data := p.audio(); data != "" {
				return data
			}
		}
	case '{':
		var obj struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && present(obj.Data) {
			return obj.Data
		}
	}
	return ""
}

func (p ContentPart) audio() string {
	if p.Type != "audio" && p.Type != "input_audio" {
		return ""
	}
	for _, nested := range []*AudioData{p.InputAudio, p.InputAudioSnake} {
		if nested != nil && present(nested.Data) {
			return nested.Data
		}
	}
	if present(p.Data) {
		return p.Data
	}
	return ""
}

func present(s string) bool { return strings.TrimSpace(s) != "" }
