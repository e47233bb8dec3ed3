package loop

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir())
	l, err := store.Start("write the parser", "parser done", 5, false, "")
	require.NoError(t, err)

	got, err := store.Load(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, "write the parser", got.Directive)
	assert.Equal(t, 5, got.MaxIterations)
	assert.Equal(t, StatusActive, got.Status)
}

func TestStore_StartSetsForeground(t *testing.T) {
	store := NewStore(t.TempDir())
	l, err := store.Start("d", "p", 0, false, "")
	require.NoError(t, err)

	active, warnings := store.Active()
	require.Empty(t, warnings)
	require.NotNil(t, active)
	assert.Equal(t, l.ID, active.ID)

	// Starting another loop moves the single pointer.
	l2, err := store.Start("d2", "p2", 0, false, "")
	require.NoError(t, err)
	active, _ = store.Active()
	require.NotNil(t, active)
	assert.Equal(t, l2.ID, active.ID)
}

func TestStore_ClearActive(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Start("d", "p", 0, false, "")
	require.NoError(t, err)
	require.NoError(t, store.ClearActive())

	active, warnings := store.Active()
	assert.Nil(t, active)
	assert.Empty(t, warnings)
}

func TestStore_FindByPrefix(t *testing.T) {
	store := NewStore(t.TempDir())
	l, err := store.Start("d", "p", 0, false, "")
	require.NoError(t, err)

	got, err := store.Find(l.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)

	_, err = store.Find("zzzz")
	assert.Error(t, err)
}

func TestStore_LoadCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "loops"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loops", "bad.json"), []byte("{not json"), 0o644))

	_, err := store.Load("bad")
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestStore_ListSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	_, err := store.Start("d", "p", 0, false, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loops", "bad.json"), []byte("{"), 0o644))

	loops, warnings, err := store.List()
	require.NoError(t, err)
	assert.Len(t, loops, 1)
	assert.Len(t, warnings, 1)
}

func TestStore_CorruptPointerIsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.json"), []byte("garbage"), 0o644))

	active, warnings := store.Active()
	assert.Nil(t, active)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "corrupt")
}

func TestStore_DanglingPointerIsAbsent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.SetActive("missing-loop-id"))

	active, warnings := store.Active()
	assert.Nil(t, active)
	assert.Len(t, warnings, 1)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	l, err := store.Start("d", "p", 0, false, "")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		l.advance()
		require.NoError(t, store.Save(l))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "loops"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "atomic writes must leave only the record itself")
}
