package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id" validate:"required"`
	Note string `json:"note"`
}

func TestOpenCreatesEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.json")

	f, err := Open[record](path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	items, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUpdateRewritesWholeFile(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	err = f.Update(func(items []record) ([]record, bool, error) {
		return append(items, record{ID: "a", Note: "ünïcode & <tags>"}, record{ID: "b"}), true, nil
	})
	require.NoError(t, err)

	items, err := f.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ünïcode & <tags>", items[0].Note)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "ünïcode & <tags>")
}

func TestUpdateWithoutChangeDoesNotWrite(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.Path(), []byte(`[{"id":"x"}]`), 0o644))

	err = f.Update(func(items []record) ([]record, bool, error) {
		return nil, false, nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"x"}]`, string(data))
}

func TestUpdatePropagatesCallbackError(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = f.Update(func(items []record) ([]record, bool, error) {
		return nil, true, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLoadRejectsInvalidRecord(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.Path(), []byte(`[{"id":"ok"},{"note":"missing id"}]`), 0o644))

	_, err = f.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "record 1")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.Path(), []byte(`{"id":`), 0o644))

	_, err = f.Load()
	assert.Error(t, err)
}

func TestReplaceRejectsInvalidRecordAndKeepsFile(t *testing.T) {
	f, err := Open[record](filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	require.NoError(t, f.Replace([]record{{ID: "keep"}}))

	err = f.Replace([]record{{Note: "no id"}})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	items, err := f.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep", items[0].ID)
}

func TestNewIDIsHex(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewID())
}
