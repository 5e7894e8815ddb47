// Package dirty tracks whether any file of the last bundle has changed on
// disk, based on content hashing. The run loop consults it before paying
// for a full precompile.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileState is the recorded state of a single file.
type fileState struct {
	Path string
	Hash string
}

// Tracker remembers the content hash of every file in the last bundle.
type Tracker struct {
	mu    sync.RWMutex
	files map[string]fileState
}

// New creates an empty Tracker. An empty tracker always reports a change.
func New() *Tracker {
	return &Tracker{files: make(map[string]fileState)}
}

// computeHash computes SHA256 hash of file contents.
func computeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Track replaces the tracked set with paths and their current hashes.
// On error the tracked set is cleared so the next check reports a change.
func (t *Tracker) Track(paths []string) error {
	files := make(map[string]fileState, len(paths))
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			t.reset()
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		hash, err := computeHash(absPath)
		if err != nil {
			t.reset()
			return err
		}
		files[absPath] = fileState{Path: absPath, Hash: hash}
	}

	t.mu.Lock()
	t.files = files
	t.mu.Unlock()
	return nil
}

// Changed reports whether any tracked file was modified or removed since
// the last Track. It is true when nothing is tracked.
func (t *Tracker) Changed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.files) == 0 {
		return true
	}
	for _, state := range t.files {
		hash, err := computeHash(state.Path)
		if err != nil || hash != state.Hash {
			return true
		}
	}
	return false
}

// ChangedFiles returns the tracked files whose content differs from the
// recorded hash, sorted.
func (t *Tracker) ChangedFiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []string
	for _, state := range t.files {
		hash, err := computeHash(state.Path)
		if err != nil || hash != state.Hash {
			result = append(result, state.Path)
		}
	}
	sort.Strings(result)
	return result
}

// Files returns the tracked paths, sorted.
func (t *Tracker) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, 0, len(t.files))
	for path := range t.files {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Count returns the number of tracked files.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

func (t *Tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState)
}
