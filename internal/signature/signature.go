// Package signature computes and compares the HMAC-SHA256 signatures carried
// by scrape callbacks.
//
// The signed content is the timestamp header value, a literal ".", and the
// request body exactly as it arrived on the wire:
//
//	hex(HMAC-SHA256(secret, timestamp + "." + body))
//
// The body must never be rebuilt from a decoded JSON value before signing or
// verifying. Key order and whitespace differences change the digest.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Size is the length of a hex-encoded signature.
const Size = sha256.Size * 2

// Sign returns the lowercase hex HMAC-SHA256 of "{timestamp}.{body}" keyed by secret.
func Sign(body []byte, secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether two signatures are identical.
//
// Inputs of different length are unequal and return immediately. Equal-length
// inputs are compared over every byte with crypto/subtle, so the running time
// does not depend on where they first differ.
func Equal(got, want string) bool {
	if len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
