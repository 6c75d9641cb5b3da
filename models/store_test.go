package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMissingFile(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Routes())
}

func TestStoreSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "config.json")

	s, err := OpenStore(path)
	require.NoError(t, err)
	s.Put("cam2", "/dev/video0")
	s.Put("cam1", "rtsp://10.0.0.5/live")
	require.NoError(t, s.Save())

	var doc map[string]map[string]map[string]string
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "/dev/video0", doc["streams"]["cam2"]["input"])

	reloaded, err := OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cam1", "cam2"}, reloaded.Routes())
	def, ok := reloaded.Get("cam1")
	assert.True(t, ok)
	assert.Equal(t, "rtsp://10.0.0.5/live", def.Input)

	reloaded.Delete("cam1")
	require.NoError(t, reloaded.Save())
	again, err := OpenStore(path)
	require.NoError(t, err)
	assert.False(t, again.Has("cam1"))
	assert.True(t, again.Has("cam2"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStoreKeepsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 3, "streams": {"a": {"input": "x.mp4"}}}`), 0o644))

	s, err := OpenStore(path)
	require.NoError(t, err)
	s.Put("b", "y.mp4")
	require.NoError(t, s.Save())

	var doc map[string]json.RawMessage
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.JSONEq(t, `3`, string(doc["version"]))
	assert.JSONEq(t, `{"a": {"input": "x.mp4"}, "b": {"input": "y.mp4"}}`, string(doc["streams"]))
}

func TestStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"streams": [`), 0o644))
	_, err := OpenStore(path)
	assert.Error(t, err)
}
