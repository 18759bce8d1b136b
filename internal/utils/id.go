package utils

import "crypto/rand"

// NewTokenID returns a random base32 id with at least 128 bits of entropy,
// used as the jti of every signed token.
func NewTokenID() string {
	return rand.Text()
}
