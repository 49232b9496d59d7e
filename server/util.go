package main

import (
	"crypto/rand"
	"encoding/hex"
	"os"
)

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// envOr returns the environment value for key, or def when unset
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// truncate cuts s to at most n bytes
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
