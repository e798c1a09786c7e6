// Package store persists accumulator totals across restarts.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Checkpoint is the last known total of one accumulator.
type Checkpoint struct {
	Value float64   `yaml:"value"`
	At    time.Time `yaml:"window_start"`
}

// File is a YAML checkpoint file keyed by accumulator name.
// Saves are kept in memory until Flush.
type File struct {
	path string

	mu      sync.Mutex
	entries map[string]Checkpoint
	dirty   bool
}

// Open reads the checkpoint file at path.
// A missing file yields an empty store. A corrupt file also yields an empty store,
// together with the decode error so the caller can log it.
func Open(path string) (*File, error) {
	f := &File{
		path:    path,
		entries: make(map[string]Checkpoint),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	var entries map[string]Checkpoint
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return f, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	for name, cp := range entries {
		f.entries[name] = cp
	}
	return f, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load returns the checkpoint for name. ok is false if there is none or its value is not finite.
func (f *File) Load(name string) (cp Checkpoint, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, ok = f.entries[name]
	if !ok || math.IsNaN(cp.Value) || math.IsInf(cp.Value, 0) {
		return Checkpoint{}, false
	}
	return cp, true
}

// Save records a checkpoint for name.
func (f *File) Save(name string, cp Checkpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.entries[name]; ok && existing == cp {
		return
	}
	f.entries[name] = cp
	f.dirty = true
}

// Flush writes pending checkpoints to disk, replacing the file atomically.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty {
		return nil
	}

	data, err := yaml.Marshal(f.entries)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing checkpoint %s: %w", f.path, err)
	}

	f.dirty = false
	return nil
}
