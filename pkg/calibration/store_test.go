package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Load(t *testing.T) {
	t.Parallel()

	t.Run("Missing file", func(t *testing.T) {
		t.Parallel()

		store := NewFileStore(filepath.Join(t.TempDir(), "calibration.json"))
		models, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, Defaults(), models)
		assert.Len(t, models, 3)
		assert.Contains(t, models, PH)
		assert.Contains(t, models, TDS)
		assert.Contains(t, models, DO)
	})
	t.Run("Existing file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "calibration.json")
		doc := `{"ph": {"slope": 6.0, "offset": -2.0}, "orp": {"slope": 1.5, "offset": 0.25}}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
		models, err := NewFileStore(path).Load()
		require.NoError(t, err)
		assert.Equal(t, Models{
			PH:    {Sensor: PH, Slope: 6.0, Offset: -2.0},
			"orp": {Sensor: "orp", Slope: 1.5, Offset: 0.25},
		}, models)
	})
	t.Run("Corrupt file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "calibration.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"ph": {"slope": `), 0644))
		_, err := NewFileStore(path).Load()
		assert.ErrorIs(t, err, ErrCorruptState)
	})
	t.Run("Null document", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "calibration.json")
		require.NoError(t, os.WriteFile(path, []byte(`null`), 0644))
		_, err := NewFileStore(path).Load()
		assert.ErrorIs(t, err, ErrCorruptState)
	})
}

func TestFileStore_Save(t *testing.T) {
	t.Parallel()

	t.Run("Round trip", func(t *testing.T) {
		t.Parallel()

		store := NewFileStore(filepath.Join(t.TempDir(), "calibration.json"))
		loaded, err := store.Load()
		require.NoError(t, err)
		require.NoError(t, store.Save(loaded))
		first, err := store.Load()
		require.NoError(t, err)
		require.NoError(t, store.Save(first))
		second, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, loaded, first)
		assert.Equal(t, first, second)
	})
	t.Run("Overwrites", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		store := NewFileStore(filepath.Join(dir, "calibration.json"))
		require.NoError(t, store.Save(Defaults()))
		require.NoError(t, store.Save(Models{PH: {Slope: 3, Offset: 1}}))
		models, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, Models{PH: {Sensor: PH, Slope: 3, Offset: 1}}, models)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary files must not be left behind")
	})
}
