package audio

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidContainer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "signature only", input: b64(0x1A, 0x45, 0xDF, 0xA3), want: true},
		{name: "signature with payload", input: b64(0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00), want: true},
		{name: "zeros", input: b64(0x00, 0x00, 0x00, 0x00), want: false},
		{name: "empty", input: "", want: false},
		{name: "three bytes of signature", input: b64(0x1A, 0x45, 0xDF), want: false},
		{name: "one byte", input: b64(0x1A), want: false},
		{name: "last byte differs", input: b64(0x1A, 0x45, 0xDF, 0xA4, 0x01), want: false},
		{name: "signature not at start", input: b64(0x00, 0x1A, 0x45, 0xDF, 0xA3), want: false},
		{name: "not base64", input: "%%%not-base64%%%", want: false},
		{name: "truncated base64", input: "GkXfo", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidContainer(tt.input))
		})
	}
}

func TestIsValidContainer_AnySuffix(t *testing.T) {
	for n := 0; n < 64; n++ {
		data := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, n)...)
		for i := 4; i < len(data); i++ {
			data[i] = byte(i * 7)
		}
		assert.True(t, IsValidContainer(base64.StdEncoding.EncodeToString(data)), "suffix length %d", n)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00},
		[]byte("some longer payload that spans several base64 quanta"),
	}
	for _, in := range inputs {
		out, err := Decode(base64.StdEncoding.EncodeToString(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestHash(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Hash([]byte("a")))
}

func b64(b ...byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
