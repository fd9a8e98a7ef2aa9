// Package store implements the content-addressed, versioned artifact store.
// Artifacts are immutable once committed: regeneration appends a new version,
// and pre-split originals are archived rather than deleted. Artifact commits
// are the only cross-stage synchronization primitive.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Artifact is one committed version of a named content object.
type Artifact struct {
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	Content    string    `json:"content,omitempty"`
	Size       int       `json:"size"` // line count
	Hash       string    `json:"hash"` // sha256 of content
	ProducedBy string    `json:"produced_by,omitempty"`
	Archived   bool      `json:"archived,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CountLines returns the artifact size in lines. A trailing newline does not
// count an extra empty line; the empty string has size 0.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// HashContent returns the hex sha256 of the content
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
