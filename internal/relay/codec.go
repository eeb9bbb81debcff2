package relay

import "encoding/base64"

// The boundary transport carries structured text only, so document bytes
// are transcoded to base64 on the way out and back to raw bytes on the
// receiving side. The round trip is lossless for arbitrary sequences.

// EncodeBytes transcodes raw bytes for transport across the boundary.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytes reverses EncodeBytes.
func DecodeBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
