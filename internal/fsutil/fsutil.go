// SPDX-License-Identifier: MIT

// Package fsutil provides workspace preparation and artifact path helpers.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnsureWorkspace creates the workspace directory if missing and verifies it
// is writable. A failure here is a startup-fatal condition for the daemon.
func EnsureWorkspace(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("workspace %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return fmt.Errorf("close workspace probe: %w", err)
	}
	return os.Remove(name)
}

// ArtifactBase returns the collision-free path prefix for one download job:
// {conversationId}_{formatId}_{unixTimestamp}. The download tool appends the
// container extension.
func ArtifactBase(dir, conversationID, formatID string, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%d", sanitize(conversationID), sanitize(formatID), t.Unix())
	return filepath.Join(dir, name)
}

// WithinRoot reports whether path resolves to a location inside root. The
// janitor uses it to refuse deletions outside the workspace.
func WithinRoot(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// sanitize strips path separators and other characters that have no business
// in a workspace filename.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
