package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	out := &bufferSyncer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: "json", DisableTimestamp: true}, out)
	require.NoError(t, err)

	lg.Debug("hidden")
	lg.Info("decoded", FieldType("object"), FieldOffset(12))
	require.NoError(t, lg.Sync())

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"psonType":"object"`)
	assert.Contains(t, out.String(), `"offset":12`)
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "verbose"}, &bufferSyncer{})
	assert.Error(t, err)
}

func TestTraceLevelMapsToDebug(t *testing.T) {
	_, props, err := InitLoggerWithWriteSyncer(&Config{Level: "trace"}, &bufferSyncer{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
}

func TestCtxLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	oldL, oldP := L(), _globalP.Load().(*ZapProperties)
	ReplaceGlobals(lg, props)
	defer ReplaceGlobals(oldL, oldP)

	ctx := WithModule(context.Background(), "decoder")
	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.NotSame(t, Ctx(context.Background()).Logger, l.Logger)
	assert.Same(t, l, Ctx(ctx))
	l.Debug("with module", zap.Int("n", 1))

	// nil ctx 退回全局 Logger。
	//nolint:staticcheck
	assert.NotNil(t, Ctx(nil))
}

func TestSetLevel(t *testing.T) {
	old := GetLevel()
	defer SetLevel(old)
	SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, GetLevel())
	assert.Equal(t, zapcore.ErrorLevel, Level().Level())
}

func TestRatedLogger(t *testing.T) {
	l := With(FieldComponent("test")).WithRateGroup("log_test", 1, 1)
	assert.True(t, l.RatedDebug(1, "first"))
	assert.False(t, l.RatedDebug(1, "second"))
	assert.True(t, RatedDebug(0, "nop limiter never drops"))
}

func TestBinderFallsBackToGlobal(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())
	custom := With(FieldModule("codec"))
	b.SetLogger(custom)
	assert.Same(t, custom, b.Logger())
}
