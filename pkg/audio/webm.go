// Package audio validates and fingerprints recorded audio payloads.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Format is the container format accepted by the API.
const Format = "webm"

// ContentType is the MIME type used when the audio leaves the process.
const ContentType = "audio/webm"

// ebmlSignature is the magic number at the start of every WebM/Matroska file.
var ebmlSignature = []byte{0x1A, 0x45, 0xDF, 0xA3}

// Decode decodes standard base64 audio data.
func Decode(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// HasSignature reports whether data begins with the EBML signature.
func HasSignature(data []byte) bool {
	return len(data) >= len(ebmlSignature) && bytes.Equal(data[:len(ebmlSignature)], ebmlSignature)
}

// IsValidContainer decodes b64 and checks the first four bytes against the
// EBML signature. Undecodable input is reported as invalid.
func IsValidContainer(b64 string) bool {
	data, err := Decode(b64)
	if err != nil {
		return false
	}
	return HasSignature(data)
}

// Hash returns the hex encoded BLAKE3-256 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
