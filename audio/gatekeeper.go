package audio

import (
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/util"
)

// MinSize is the smallest accepted decoded payload in bytes.
const MinSize = 1024

// Kind classifies a rejected payload.
type Kind int

const (
	KindNone Kind = iota
	KindMissingAudio
	KindMalformedEncoding
	KindTooLarge
	KindTooSmall
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingAudio:
		return "missing_audio"
	case KindMalformedEncoding:
		return "malformed_encoding"
	case KindTooLarge:
		return "too_large"
	case KindTooSmall:
		return "too_small"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of validating one payload.
type Verdict struct {
	Accepted bool
	Kind     Kind
	Message  string

	size    int
	limitMB int
	cause   error
}

// Err converts a rejection into an AppError. It returns nil for accepted
// payloads.
func (v Verdict) Err() *errors.AppError {
	switch v.Kind {
	case KindMissingAudio:
		return errors.MissingAudio()
	case KindMalformedEncoding:
		return errors.MalformedEncoding(v.cause)
	case KindTooLarge:
		return errors.AudioTooLarge(v.limitMB, v.size)
	case KindTooSmall:
		return errors.AudioTooSmall(MinSize, v.size)
	default:
		return nil
	}
}

// Clip is a decoded, accepted payload.
type Clip struct {
	Data       []byte
	Format     Format
	Identified bool
}

// Size returns the decoded length in bytes.
func (c *Clip) Size() int { return len(c.Data) }

// Gatekeeper validates encoded audio payloads before anything touches disk.
type Gatekeeper struct {
	maxMB    int
	maxBytes int
	log      *logger.Logger
}

// NewGatekeeper creates a gatekeeper accepting at most maxMB megabytes.
func NewGatekeeper(maxMB int, log *logger.Logger) *Gatekeeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Gatekeeper{
		maxMB:    maxMB,
		maxBytes: int(util.MegabytesToBytes(maxMB)),
		log:      log.WithComponent("gatekeeper"),
	}
}

// MaxMB returns the configured limit in megabytes.
func (g *Gatekeeper) MaxMB() int { return g.maxMB }

// Validate checks presence, encoding, upper size, lower size and format, in
// that order, stopping at the first failure. The decoded clip is returned
// only when the payload is accepted.
func (g *Gatekeeper) Validate(payload string) (Verdict, *Clip) {
	if strings.TrimSpace(payload) == "" {
		return reject(KindMissingAudio, errors.MissingAudio().Message), nil
	}

	data, err := Decode(payload)
	if err != nil {
		v := reject(KindMalformedEncoding, errors.MalformedEncoding(nil).Message)
		v.cause = err
		return v, nil
	}

	if len(data) > g.maxBytes {
		v := reject(KindTooLarge, errors.AudioTooLarge(g.maxMB, len(data)).Message)
		v.size, v.limitMB = len(data), g.maxMB
		return v, nil
	}

	if len(data) < MinSize {
		v := reject(KindTooSmall, errors.AudioTooSmall(MinSize, len(data)).Message)
		v.size = len(data)
		return v, nil
	}

	format, identified := Identify(data)
	if !identified {
		g.log.Debug("audio format not identified, accepting", logger.Fields(
			logger.FieldSize, logger.Size(len(data)),
			logger.FieldFormat, string(format),
		))
	}
	return Verdict{Accepted: true}, &Clip{Data: data, Format: format, Identified: identified}
}

func reject(kind Kind, msg string) Verdict {
	return Verdict{Kind: kind, Message: msg}
}

// Decode decodes a base64 payload. Whitespace anywhere and a leading
// "data:<mime>;base64," prefix are ignored; padding is optional.
func Decode(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if !strings.HasSuffix(s, "=") {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
	}
	return nil, err
}
