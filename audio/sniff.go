package audio

import "bytes"

// Format is a container format tag.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatWebM Format = "webm"
)

// DefaultFormat is returned when no signature matches. It is the most
// common client payload, not a confident detection.
const DefaultFormat = FormatMP3

// Extension returns the file suffix for the format, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

type signature struct {
	magic  []byte
	format Format
}

// Checked in order against the start of the buffer; first match wins.
var signatures = []signature{
	{[]byte{0xFF, 0xFB}, FormatMP3},
	{[]byte{0xFF, 0xF3}, FormatMP3},
	{[]byte{0xFF, 0xF2}, FormatMP3},
	{[]byte("ID3"), FormatMP3},
	{[]byte("ftyp"), FormatM4A},
	{[]byte("moov"), FormatM4A},
	{[]byte("mdat"), FormatM4A},
	{[]byte("RIFF"), FormatWAV},
	{[]byte("fLaC"), FormatFLAC},
	{[]byte("OggS"), FormatOGG},
	{[]byte{0x1A, 0x45, 0xDF, 0xA3}, FormatWebM},
}

const (
	id3Window  = 128
	ftypWindow = 32
)

// Identify returns the container format of b and whether any signature
// actually matched.
func Identify(b []byte) (Format, bool) {
	for _, sig := range signatures {
		if bytes.HasPrefix(b, sig.magic) {
			return sig.format, true
		}
	}
	if bytes.Contains(head(b, id3Window), []byte("ID3")) {
		return FormatMP3, true
	}
	h := head(b, ftypWindow)
	if bytes.Contains(h, []byte("ftyp")) || bytes.Contains(h, []byte("moov")) {
		return FormatM4A, true
	}
	return DefaultFormat, false
}

// Sniff returns the best-guess container format of b. It never fails.
func Sniff(b []byte) Format {
	f, _ := Identify(b)
	return f
}

func head(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
