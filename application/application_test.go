package application

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

func TestRunWithArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pson.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pson:
  allocator:
    kind: heap
    heap_limit: 1048576
  stream:
    compression: zstd
    secret: s3cret
logging:
  tool:
    level: debug
`), 0o600))

	app := New()
	require.NoError(t, app.RunWithArgs([]string{"a.json", "--config", path, "b.json"}))
	assert.Equal(t, []string{"a.json", "b.json"}, app.Args())
	assert.Equal(t, 1048576, app.PSON().Allocator.HeapLimit)
	assert.True(t, pson.Installed())
	assert.NotNil(t, app.Logger("tool"))
	assert.NotNil(t, app.Logger("unknown"))

	c, err := app.NewCodec()
	require.NoError(t, err)

	v := pson.NewValue(nil)
	require.NoError(t, v.GetOrCreate("k").SetString("v"))
	var buf bytes.Buffer
	require.NoError(t, c.Encode(context.Background(), &buf, v))
	doc, err := c.Decode(context.Background(), &buf)
	require.NoError(t, err)
	defer doc.Release()
	assert.True(t, pson.Equal(v, doc.Value))

	// 默认分配器只能安装一次
	err = New().RunWithArgs([]string{"--config=" + path})
	assert.True(t, errors.Is(err, merr.ErrAllocatorInstalled))
}

func TestMissingExplicitConfig(t *testing.T) {
	err := New().RunWithArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)

	err = New().RunWithArgs([]string{"--config"})
	assert.Error(t, err)
}
