package compressor

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

func TestZstdRoundTrip(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	src := bytes.Repeat([]byte("pson-frame "), 200)
	packet, err := c.Compress(nil, src)
	require.NoError(t, err)
	assert.Less(t, len(packet), len(src))

	plain, err := c.Decompress(nil, packet)
	require.NoError(t, err)
	assert.Equal(t, src, plain)

	_, err = c.Decompress(nil, []byte("not zstd"))
	assert.Error(t, err)
}

func TestZstdClosed(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	c.Close()
	_, err = c.Compress(nil, []byte("x"))
	assert.Error(t, err)
	_, err = c.Decompress(nil, []byte("x"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.IsType(t, NopCompressor{}, c)

	c, err = New(KindZstd)
	require.NoError(t, err)
	assert.IsType(t, &ZstdCompressor{}, c)

	_, err = New("lz4")
	assert.True(t, errors.Is(err, merr.ErrParameterInvalid))
}
