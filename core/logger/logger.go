// Package logger writes flat structured log lines through log/slog. Every
// line carries a component and an event; request metadata stored in the
// context is merged in by the handler.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/quizbot/core/buildinfo"
	coreconfig "github.com/m3rciful/quizbot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	out     *sink
	files   []io.Closer
	level   slog.LevelVar
	debug   sampler
	traceOn bool
	stacks  = true

	// L is the base logger; component loggers derive from it.
	L *slog.Logger
)

type options struct {
	format  logFormat
	order   []string
	level   slog.Level
	profile string
}

func optionsFrom(cfg *coreconfig.Config) options {
	o := options{format: formatJSON, order: defaultKeyOrder, level: slog.LevelInfo, profile: "prod"}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var keys []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			o.order = keys
		}
	}
	o.level = parseLevel(lc.Level)
	return o
}

// InitLogger installs the global logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		o := optionsFrom(cfg)
		level.Set(o.level)
		debug.set(sampleRatio(cfg))
		traceOn = envFlag("TRACE") || envFlag("LOG_TRACE")
		if cfg != nil {
			switch strings.ToLower(strings.TrimSpace(cfg.Logging.Stacks)) {
			case "off", "false", "0", "no":
				stacks = false
			}
		}

		var all, errOnly []io.Writer
		all, errOnly, files, err = openOutputs(cfg)
		if err != nil {
			return
		}
		out = newSink(all, errOnly)
		L = slog.New(newLineHandler(out, o.format, &level, o.order))
		slog.SetDefault(L)

		attrs := []slog.Attr{
			slog.String("go_version", runtime.Version()),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", o.profile),
		}
		if cfg != nil {
			attrs = append(attrs, slog.String("store", cfg.Store.Driver))
		}
		Info(Background(), "app", "startup", attrs...)
	})
	return err
}

// openOutputs returns stdout plus the optional log file, and the optional
// errors file that only receives ERROR lines.
func openOutputs(cfg *coreconfig.Config) (all, errOnly []io.Writer, closers []io.Closer, err error) {
	all = []io.Writer{os.Stdout}
	if cfg == nil {
		return all, nil, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if dir == "" {
		return all, nil, nil, nil
	}
	open := func(name string) (*os.File, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", name, err)
		}
		closers = append(closers, f)
		return f, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("logger: create dir %s: %w", dir, err)
	}
	f, err := open(cfg.Logging.BotFile)
	if err != nil {
		return nil, nil, closeAll(closers), err
	}
	if f != nil {
		all = append(all, f)
	}
	if f, err = open(cfg.Logging.ErrorsFile); err != nil {
		return nil, nil, closeAll(closers), err
	}
	if f != nil {
		errOnly = append(errOnly, f)
	}
	return all, errOnly, closers, nil
}

func closeAll(cs []io.Closer) []io.Closer {
	for _, c := range cs {
		_ = c.Close()
	}
	return nil
}

// Shutdown flushes pending lines and closes the log files.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Flush(), out.Close())
	}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func sampleRatio(cfg *coreconfig.Config) (int, int) {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return 1, 50
	}
	num, den, ok := parseRatio(cfg.Logging.DebugSample)
	if !ok {
		return 1, 50
	}
	return num, den
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Background returns the context used for logs outside an update.
func Background() context.Context {
	return context.Background()
}

// Component returns L scoped to the named component, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes event through logg, falling back to the context logger and
// then to L. It is a no-op when no logger is available.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		logg = L
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Event logs event for component at lvl.
func Event(ctx context.Context, component string, lvl slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if logg = FromContext(ctx); logg != nil && strings.TrimSpace(component) != "" {
			logg = logg.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, lvl, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	return traceOn || debug.allow()
}

// TraceEnabled reports whether TRACE or LOG_TRACE is set.
func TraceEnabled() bool {
	return traceOn
}

// StacksEnabled reports whether panic logs include the goroutine stack.
// logging.stacks: off turns them off.
func StacksEnabled() bool {
	return stacks
}
