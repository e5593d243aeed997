package saori

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// Codec converts between the bytes exchanged with the host and the decoded
// text the protocol engine works on.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the charset name, as used in configuration.
	Name() string
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
}

// ShiftJIS is the codec used by SAORI hosts.
//
// Invalid input bytes decode to U+FFFD. Runes Shift_JIS cannot represent are
// encoded as HTML numeric character references (&#NNNN;) instead of failing.
var ShiftJIS Codec = shiftJISCodec{}

// UTF8 passes text through unchanged. Useful for hosts that already speak UTF-8.
var UTF8 Codec = utf8Codec{}

// CodecByName returns the codec for a charset name (case-insensitive).
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "", "shift_jis", "sjis", "cp932", "windows_31j":
		return ShiftJIS, nil
	case "utf_8", "utf8":
		return UTF8, nil
	default:
		return nil, fmt.Errorf("saori: unsupported charset %q", name)
	}
}

type shiftJISCodec struct{}

func (shiftJISCodec) Name() string { return "Shift_JIS" }

// Decoders and encoders carry transform state, so each call gets its own.
func (shiftJISCodec) Decode(b []byte) (string, error) {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("saori: shift_jis decode: %w", err)
	}
	return string(out), nil
}

func (shiftJISCodec) Encode(s string) ([]byte, error) {
	enc := encoding.HTMLEscapeUnsupported(japanese.ShiftJIS.NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("saori: shift_jis encode: %w", err)
	}
	return out, nil
}

type utf8Codec struct{}

func (utf8Codec) Name() string { return "UTF-8" }

func (utf8Codec) Decode(b []byte) (string, error) {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
}

func (utf8Codec) Encode(s string) ([]byte, error) {
	return []byte(s), nil
}
