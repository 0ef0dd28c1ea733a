package ldap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLevel(t *testing.T) {
	tests := []struct {
		level    int
		expected hclog.Level
	}{
		{level: -1, expected: hclog.Off},
		{level: 0, expected: hclog.Off},
		{level: 1, expected: hclog.Info},
		{level: 2, expected: hclog.Debug},
		{level: 3, expected: hclog.Trace},
		{level: 9, expected: hclog.Trace},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, traceLevel(tt.level), "level %d", tt.level)
	}
}

func TestOpenTraceSink(t *testing.T) {
	t.Run("file is appended and sanitized", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trace.log")
		require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o600))

		sink, err := openTraceSink(path, 1)
		require.NoError(t, err)
		assert.True(t, sink.owned)

		sink.Info("bind", map[string]any{"dn": testBindDN, "password": "hunter2"})
		sink.Debug("hidden at level 1", nil)
		require.NoError(t, sink.Close())
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(data)

		assert.Contains(t, content, "previous run")
		assert.Contains(t, content, "ldap-trace: bind")
		assert.Contains(t, content, testBindDN)
		assert.NotContains(t, content, "hunter2")
		assert.NotContains(t, content, "hidden at level 1")
	})

	t.Run("trace level includes payloads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trace.log")

		sink, err := openTraceSink(path, 3)
		require.NoError(t, err)
		sink.Trace("search entry", map[string]any{"dn": testUserDN})
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "search entry")
	})

	t.Run("disabled file trace creates nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trace.log")

		sink, err := openTraceSink(path, 0)
		require.NoError(t, err)
		sink.Info("bind", nil)
		require.NoError(t, sink.Close())

		_, err = os.Stat(path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("standard streams are not owned", func(t *testing.T) {
		for _, dest := range []string{"", TraceStdout, TraceStderr, "STDERR"} {
			sink, err := openTraceSink(dest, 0)
			require.NoError(t, err)
			assert.False(t, sink.owned, dest)
			assert.NoError(t, sink.Close())
		}
	})

	t.Run("unwritable destination", func(t *testing.T) {
		_, err := openTraceSink(filepath.Join(t.TempDir(), "missing", "trace.log"), 1)
		assert.Error(t, err)
	})

	t.Run("nil sink", func(t *testing.T) {
		var sink *traceSink
		sink.Info("bind", nil)
		sink.Debug("bind", nil)
		sink.Trace("bind", nil)
		assert.NoError(t, sink.Close())
	})
}

func TestHandleTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldap.log")
	cfg := testConfig()
	cfg.TraceFile = path
	cfg.TraceLevel = 2

	conn := newMockConn()
	conn.On("Bind", testBindDN, "secret").Return(nil).Once()
	conn.On("Unbind").Return(nil).Once()

	ctx := context.Background()
	h, err := InitWithDialer(ctx, cfg, dialerFor(conn, nil))
	require.NoError(t, err)
	require.NoError(t, Bind(ctx, h, testBindDN, "secret"))
	require.NoError(t, Unbind(ctx, h))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "connect")
	assert.Contains(t, content, "bind")
	assert.Contains(t, content, "unbind")
	assert.NotContains(t, content, "secret")

	_, err = h.trace.file.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestInit_TraceFileFailure(t *testing.T) {
	cfg := testConfig()
	cfg.TraceFile = filepath.Join(t.TempDir(), "missing", "ldap.log")
	cfg.TraceLevel = 1

	dials := 0
	_, err := InitWithDialer(context.Background(), cfg, dialerFor(newMockConn(), &dials))

	assert.ErrorIs(t, err, ErrConnection)
	assert.Zero(t, dials)
}
