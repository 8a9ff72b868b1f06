// Package b64url decodes and encodes the base64 transport form used for
// push key material. Browsers and push backends mix the URL-safe alphabet
// (-, _) with the standard one (+, /) and frequently omit padding, so both
// directions normalize before touching the standard library codec.
package b64url

import (
	"encoding/base64"
	"strings"
)

// Decode decodes s, accepting either base64 alphabet and correcting
// missing padding so uneven-length keys still decode.
func Decode(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(s)
}

// Encode encodes b into the unpadded URL-safe form expected by the Web
// Push protocol.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Normalize re-encodes s into the canonical unpadded URL-safe form, so
// keys received in any accepted variant are stored uniformly.
func Normalize(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Encode(b), nil
}
