package viper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type section struct {
	Kind string `mapstructure:"kind"`
	Size int    `mapstructure:"ring_size"`
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alloc:\n  kind: ring\n  ring_size: 128\n"), 0o600))

	c := New()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, path, c.ConfigFileUsed())

	var s section
	require.NoError(t, c.UnmarshalKey("alloc", &s))
	assert.Equal(t, section{Kind: "ring", Size: 128}, s)
}

func TestLoadReaderJSON(t *testing.T) {
	c := New()
	require.NoError(t, c.LoadReader(strings.NewReader(`{"alloc":{"kind":"heap"}}`), "json"))
	assert.True(t, c.IsSet("alloc.kind"))

	var all map[string]any
	require.NoError(t, c.Unmarshal(&all))
	assert.Contains(t, all, "alloc")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PSONTEST_ALLOC_RING_SIZE", "4096")
	c := NewWithEnvPrefix("PSONTEST")
	c.SetDefault("alloc.kind", "heap")
	c.SetDefault("alloc.ring_size", 64)

	var root struct {
		Alloc section `mapstructure:"alloc"`
	}
	require.NoError(t, c.Unmarshal(&root))
	assert.Equal(t, "heap", root.Alloc.Kind)
	assert.Equal(t, 4096, root.Alloc.Size)
}

func TestLoadMissing(t *testing.T) {
	assert.Error(t, New().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
