package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	body := []byte(`{"a":1}`)

	sig := Sign(body, "topsecret", "1700000000000")

	assert.Len(t, sig, Size)
	assert.Equal(t, strings.ToLower(sig), sig, "signature should be lowercase hex")
	assert.Equal(t, sig, Sign(body, "topsecret", "1700000000000"), "signature should be deterministic")
}

func TestSignInputsAffectDigest(t *testing.T) {
	base := Sign([]byte(`{"a":1}`), "topsecret", "1700000000000")

	tests := []struct {
		name      string
		body      string
		secret    string
		timestamp string
	}{
		{name: "different body", body: `{"a":2}`, secret: "topsecret", timestamp: "1700000000000"},
		{name: "reformatted body", body: `{ "a": 1 }`, secret: "topsecret", timestamp: "1700000000000"},
		{name: "different secret", body: `{"a":1}`, secret: "othersecret", timestamp: "1700000000000"},
		{name: "different timestamp", body: `{"a":1}`, secret: "topsecret", timestamp: "1700000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sign([]byte(tt.body), tt.secret, tt.timestamp)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestSignSeparator(t *testing.T) {
	// "1.2" + "." + "3" and "1" + "." + "2.3" produce the same signed content.
	assert.Equal(t, Sign([]byte("3"), "k", "1.2"), Sign([]byte("2.3"), "k", "1"))
	assert.NotEqual(t, Sign([]byte("23"), "k", "1"), Sign([]byte("3"), "k", "12"))
}

func TestEqual(t *testing.T) {
	sig := Sign([]byte("payload"), "secret", "1")

	tests := []struct {
		name string
		got  string
		want bool
	}{
		{name: "identical", got: sig, want: true},
		{name: "uppercased", got: strings.ToUpper(sig), want: false},
		{name: "truncated", got: sig[:Size-1], want: false},
		{name: "extended", got: sig + "0", want: false},
		{name: "empty", got: "", want: false},
		{name: "zeroes", got: strings.Repeat("0", Size), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.got, sig))
		})
	}
}

func TestEqualSingleCharacterTamper(t *testing.T) {
	sig := Sign([]byte(`{"a":1}`), "topsecret", "1700000000000")

	for i := 0; i < len(sig); i++ {
		tampered := []byte(sig)
		if tampered[i] == 'f' {
			tampered[i] = '0'
		} else {
			tampered[i] = 'f'
		}
		assert.False(t, Equal(string(tampered), sig), "tamper at index %d should not match", i)
	}
}
