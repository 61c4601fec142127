package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns 32 hex characters of randomness, prefixed like "sid_…" when a
// prefix is given. Synthetic credentials are minted through this, so the 128
// bits here are the credential space.
func NewID(prefix string) string {
	var raw [16]byte
	_, _ = rand.Read(raw[:])
	id := hex.EncodeToString(raw[:])
	if prefix != "" {
		id = prefix + "_" + id
	}
	return id
}
