package services

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes is 256 bits of entropy.
const tokenBytes = 32

// newToken returns an unguessable URL-safe token.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func ensureToken(slot **string) error {
	if *slot != nil && **slot != "" {
		return nil
	}
	tok, err := newToken()
	if err != nil {
		return err
	}
	*slot = &tok
	return nil
}
