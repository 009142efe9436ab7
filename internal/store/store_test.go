package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyMap(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "bills.json"))
	snapshot, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, snapshot)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "bills.json"))
	want := map[int]int{500: 3, 100: 10, 20: 7}

	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "coins.json"))

	require.NoError(t, s.Save(map[int]int{10: 5}))
	require.NoError(t, s.Save(map[int]int{10: 2, 5: 9}))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, map[int]int{10: 2, 5: 9}, got)
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "bills.json"))
	require.NoError(t, s.Save(map[int]int{100: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "bills.json", entries[0].Name())
}

func TestSaveCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bills.json")
	s := New(path)
	require.NoError(t, s.Save(map[int]int{50: 4}))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, map[int]int{50: 4}, got)
}

func TestLoadRejectsNonNumericDenominationKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bills.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fifty": 4}`), 0o644))

	s := New(path)
	_, err := s.Load()
	require.Error(t, err)
}

func TestPathReturnsConstructorArgument(t *testing.T) {
	s := New("/tmp/whatever.json")
	require.Equal(t, "/tmp/whatever.json", s.Path())
}
