// Package id generates identifiers for tasks and temporary files.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// shortAlphabet keeps generated names safe inside file names and filter
// arguments (no ':' or ',' which ffmpeg treats as separators).
const shortAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Task returns a time-ordered task identifier with the given prefix,
// e.g. "convert-0190f0c2-...". UUID v7 keeps tasks sortable by creation.
func Task(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return prefix + "-" + u.String()
}

// Short returns a compact random name with the given prefix,
// e.g. "passlog-k3x9q0ab2m". Used for passlog and transform files.
func Short(prefix string) (string, error) {
	s, err := gonanoid.Generate(shortAlphabet, 10)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + s, nil
}

// MustShort is like Short but panics if the system has no entropy.
func MustShort(prefix string) string {
	s, err := Short(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return s
}
