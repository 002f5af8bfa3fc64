// Command asyncecho runs an echo server on top of asyncnet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cyberinferno/go-asyncsocket/admission"
	"github.com/cyberinferno/go-asyncsocket/echoserver"
	"github.com/cyberinferno/go-asyncsocket/logger"
	"github.com/cyberinferno/go-asyncsocket/scheduler"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const serviceName = "asyncecho"

type options struct {
	server    echoserver.Config
	redisAddr string
	logDir    string
	logLevel  zerolog.Level
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseOptions reads flags, falling back to ASYNCECHO_* environment variables
// for their defaults.
func parseOptions(args []string, getenv func(string) string) (options, error) {
	defaults := echoserver.DefaultConfig(envString(getenv, "ASYNCECHO_ADDR", "0.0.0.0:7007"))
	defaults.Name = serviceName

	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	var (
		opts     options
		logLevel string
	)
	opts.server = defaults

	fs.StringVar(&opts.server.Address, "addr", defaults.Address, "listen address")
	fs.IntVar(&opts.server.Backlog, "backlog", envInt(getenv, "ASYNCECHO_BACKLOG", defaults.Backlog), "listen backlog")
	fs.IntVar(&opts.server.ReadBufferSize, "read-buffer", envInt(getenv, "ASYNCECHO_READ_BUFFER", defaults.ReadBufferSize), "per-session read buffer size")
	fs.Int64Var(&opts.server.MaxSessions, "max-sessions", int64(envInt(getenv, "ASYNCECHO_MAX_SESSIONS", int(defaults.MaxSessions))), "maximum concurrent sessions (0 = unlimited)")
	fs.Int64Var(&opts.server.AdmissionLimit, "admission-limit", int64(envInt(getenv, "ASYNCECHO_ADMISSION_LIMIT", 0)), "connections per host per window (0 = disabled)")
	fs.DurationVar(&opts.server.AdmissionWindow, "admission-window", envDuration(getenv, "ASYNCECHO_ADMISSION_WINDOW", defaults.AdmissionWindow), "admission window")
	fs.BoolVar(&opts.server.NoDelay, "nodelay", envBool(getenv, "ASYNCECHO_NODELAY", defaults.NoDelay), "disable Nagle's algorithm on sessions")
	fs.IntVar(&opts.server.SendChunk, "send-chunk", envInt(getenv, "ASYNCECHO_SEND_CHUNK", defaults.SendChunk), "maximum bytes per send call (0 = unlimited)")
	fs.StringVar(&opts.redisAddr, "redis-addr", getenv("ASYNCECHO_REDIS_ADDR"), "redis address for shared admission counters")
	fs.StringVar(&opts.logDir, "log-dir", getenv("ASYNCECHO_LOG_DIR"), "directory for daily log files (stdout only if empty)")
	fs.StringVar(&logLevel, "log-level", envString(getenv, "ASYNCECHO_LOG_LEVEL", "info"), "log level")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return options{}, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	opts.logLevel = level

	if opts.server.AdmissionLimit > 0 && opts.server.AdmissionWindow <= 0 {
		return options{}, fmt.Errorf("admission window must be positive, got %s", opts.server.AdmissionWindow)
	}

	return opts, nil
}

func run(ctx context.Context, opts options) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer log.Close()

	sched := scheduler.NewSerial(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Shutdown(shutdownCtx); err != nil {
			log.Warn("scheduler shutdown incomplete", logger.F("error", err))
		}
	}()

	policy, closeCounter := newPolicy(opts, log)
	defer closeCounter()

	srv := echoserver.NewServer(opts.server, sched, echoserver.EchoHandler{}, policy, log)
	if err := srv.Start(); err != nil {
		log.Error("server failed to start", logger.F("error", err))
		return err
	}

	return srv.Run(ctx)
}

func newLogger(opts options) (logger.Logger, error) {
	if opts.logDir != "" {
		return logger.NewZerologFileLogger(serviceName, opts.logDir, opts.logLevel)
	}

	return logger.NewZerologLogger(zerolog.New(os.Stdout).With().Timestamp().Logger(), serviceName, opts.logLevel), nil
}

// newPolicy picks the admission counter backend: Redis when an address is
// given, in-process otherwise. The server takes the limit and window from
// its Config.
func newPolicy(opts options, log logger.Logger) (admission.Policy, func()) {
	limit, window := opts.server.AdmissionLimit, opts.server.AdmissionWindow
	if limit <= 0 {
		return admission.Policy{}, func() {}
	}

	if opts.redisAddr == "" {
		log.Info("admission enabled", logger.F("backend", "memory"), logger.F("limit", limit), logger.F("window", window))
		return admission.Policy{Counter: admission.NewMemoryCounter(window)}, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
	policy := admission.Policy{Counter: admission.NewRedisCounter(client, serviceName+":")}
	log.Info("admission enabled", logger.F("backend", "redis"), logger.F("redis", opts.redisAddr), logger.F("limit", limit), logger.F("window", window))

	return policy, func() { _ = client.Close() }
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}

	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if v, err := strconv.Atoi(getenv(key)); err == nil {
		return v
	}

	return def
}

func envBool(getenv func(string) string, key string, def bool) bool {
	if v, err := strconv.ParseBool(getenv(key)); err == nil {
		return v
	}

	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getenv(key)); err == nil {
		return v
	}

	return def
}
