// Package store persists denomination counts to disk as JSON, replacing
// the canonical file atomically so a crash mid-write never corrupts it.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// InventoryStore reads and writes a single JSON object mapping
// denomination (as a decimal string key) to a non-negative count.
type InventoryStore struct {
	path string
}

// New returns an InventoryStore backed by path. It does not touch disk.
func New(path string) *InventoryStore {
	return &InventoryStore{path: path}
}

// Path returns the canonical file path this store writes to.
func (s *InventoryStore) Path() string {
	return s.path
}

// Load reads the snapshot file. If it doesn't exist, it returns an empty
// map and no error so callers can seed defaults and persist them.
func (s *InventoryStore) Load() (map[int]int, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[int]int{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	var rawMap map[string]int
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.path)
	}
	out := make(map[int]int, len(rawMap))
	for k, v := range rawMap {
		denom, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "non-numeric denomination key %q in %s", k, s.path)
		}
		out[denom] = v
	}
	return out, nil
}

// Save writes snapshot to a temp file in the same directory, then renames
// it over the canonical path. On POSIX filesystems rename is atomic, so a
// reader never observes a partially written file.
func (s *InventoryStore) Save(snapshot map[int]int) error {
	rawMap := make(map[string]int, len(snapshot))
	for denom, count := range snapshot {
		rawMap[strconv.Itoa(denom)] = count
	}
	data, err := json.MarshalIndent(rawMap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal inventory snapshot")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "write temp snapshot file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "sync temp snapshot file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close temp snapshot file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "replace %s", s.path)
	}
	return nil
}
