// Package model defines the data structures shared by the repair pipeline.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Path represents a file system path.
type Path string

// SourceUnit is an immutable snapshot of a file's text at one iteration.
type SourceUnit struct {
	Path    Path
	Text    string
	Version int
	Hash    string
}

// NewSourceUnit returns the version 0 snapshot of a file.
func NewSourceUnit(path Path, text string) SourceUnit {
	return SourceUnit{
		Path:    path,
		Text:    text,
		Version: 0,
		Hash:    HashText(text),
	}
}

// Next returns the snapshot that follows u after text was rewritten.
func (u SourceUnit) Next(text string) SourceUnit {
	return SourceUnit{
		Path:    u.Path,
		Text:    text,
		Version: u.Version + 1,
		Hash:    HashText(text),
	}
}

// Lines splits the text on newlines. A trailing newline yields a final empty element.
func (u SourceUnit) Lines() []string {
	return strings.Split(u.Text, "\n")
}

// Line returns the 1-based line n, or false when it is out of range.
func (u SourceUnit) Line(n int) (string, bool) {
	lines := u.Lines()
	if n < 1 || n > len(lines) {
		return "", false
	}

	return lines[n-1], true
}

// HashText returns the SHA-256 hex digest of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
