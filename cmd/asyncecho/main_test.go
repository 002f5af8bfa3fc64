package main

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseOptions(nil, env(nil))
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:7007", opts.server.Address)
		assert.Equal(t, serviceName, opts.server.Name)
		assert.Equal(t, zerolog.InfoLevel, opts.logLevel)
		assert.Zero(t, opts.server.AdmissionLimit)
		assert.True(t, opts.server.NoDelay)
		assert.Zero(t, opts.server.SendChunk)
		assert.Empty(t, opts.redisAddr)
	})

	t.Run("environment", func(t *testing.T) {
		opts, err := parseOptions(nil, env(map[string]string{
			"ASYNCECHO_ADDR":             "127.0.0.1:9",
			"ASYNCECHO_MAX_SESSIONS":     "7",
			"ASYNCECHO_ADMISSION_LIMIT":  "3",
			"ASYNCECHO_ADMISSION_WINDOW": "30s",
			"ASYNCECHO_REDIS_ADDR":       "redis:6379",
			"ASYNCECHO_LOG_LEVEL":        "debug",
			"ASYNCECHO_NODELAY":          "false",
			"ASYNCECHO_SEND_CHUNK":       "512",
		}))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9", opts.server.Address)
		assert.Equal(t, int64(7), opts.server.MaxSessions)
		assert.Equal(t, int64(3), opts.server.AdmissionLimit)
		assert.Equal(t, 30*time.Second, opts.server.AdmissionWindow)
		assert.Equal(t, "redis:6379", opts.redisAddr)
		assert.Equal(t, zerolog.DebugLevel, opts.logLevel)
		assert.False(t, opts.server.NoDelay)
		assert.Equal(t, 512, opts.server.SendChunk)
	})

	t.Run("flags override environment", func(t *testing.T) {
		opts, err := parseOptions(
			[]string{"-addr", "127.0.0.1:10", "-backlog", "5", "-log-level", "warn", "-nodelay=true", "-send-chunk", "64"},
			env(map[string]string{"ASYNCECHO_ADDR": "127.0.0.1:9", "ASYNCECHO_NODELAY": "0", "ASYNCECHO_SEND_CHUNK": "512"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:10", opts.server.Address)
		assert.Equal(t, 5, opts.server.Backlog)
		assert.Equal(t, zerolog.WarnLevel, opts.logLevel)
		assert.True(t, opts.server.NoDelay)
		assert.Equal(t, 64, opts.server.SendChunk)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseOptions([]string{"-log-level", "loud"}, env(nil))
		assert.Error(t, err)

		_, err = parseOptions([]string{"-admission-limit", "1", "-admission-window", "0s"}, env(nil))
		assert.Error(t, err)

		_, err = parseOptions([]string{"-unknown"}, env(nil))
		assert.Error(t, err)
	})
}

func TestNewPolicy(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		policy, closeCounter := newPolicy(options{}, logger.NewNopLogger())
		defer closeCounter()
		assert.False(t, policy.Enabled())
	})

	t.Run("memory counter", func(t *testing.T) {
		opts, err := parseOptions([]string{"-admission-limit", "2"}, env(nil))
		require.NoError(t, err)

		policy, closeCounter := newPolicy(opts, logger.NewNopLogger())
		defer closeCounter()
		assert.NotNil(t, policy.Counter)
		assert.Zero(t, policy.Limit, "the limit comes from the server config")
	})
}

func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	opts, err := parseOptions([]string{"-addr", addr, "-admission-limit", "5", "-send-chunk", "2", "-log-dir", t.TempDir(), "-log-level", "debug"}, env(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts) }()

	var c net.Conn
	require.Eventually(t, func() bool {
		c, err = net.Dial("tcp", addr)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = c.Write([]byte("ping"))
	require.NoError(t, err)
	got := make([]byte, 4)
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
