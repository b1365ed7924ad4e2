// Package logger is the structured logging layer: slog records fanned out to
// stdout and an optional file, enriched with the correlation data carried by
// the context.
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

	slogmulti "github.com/samber/slog-multi"

	"github.com/m3rciful/appealbot/core/buildinfo"
	coreconfig "github.com/m3rciful/appealbot/core/config"
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	sinks    []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newSampler(1, 50)
	traceOverride bool

	// L is the root logger. It discards output until InitLogger runs.
	L = slog.New(slog.DiscardHandler)

	// DB logs database access.
	DB *slog.Logger
	// MIG logs schema migrations.
	MIG *slog.Logger
	// SEED logs startup seeding.
	SEED *slog.Logger
	// TG logs the Telegram transport.
	TG *slog.Logger
	// TWire logs handler and menu wiring.
	TWire *slog.Logger
	// WF logs conversation workflows.
	WF *slog.Logger
	// Relay logs the attachment relay.
	Relay *slog.Logger
	// Album logs media group batching.
	Album *slog.Logger
)

func init() {
	bindComponents()
}

// settings is the logging configuration after defaults.
type settings struct {
	level   slog.Level
	format  string
	profile string
	file    string
	keep    int
	period  int
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{level: slog.LevelInfo, format: "json", profile: "prod", keep: 1, period: 50}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	if s.profile == "debug" || s.profile == "dev" {
		s.format = "kv"
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = "kv"
	case "json":
		s.format = "json"
	}
	if lvl := strings.TrimSpace(lc.Level); lvl != "" {
		if strings.EqualFold(lvl, "warning") {
			lvl = "warn"
		}
		if err := s.level.UnmarshalText([]byte(lvl)); err != nil {
			s.level = slog.LevelInfo
		}
	}
	if keep, period, ok := parseSample(lc.DebugSample); ok {
		s.keep, s.period = keep, period
	}
	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

// InitLogger installs the process logger. Only the first call has an effect.
// A log file that cannot be opened is reported and stdout is kept.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.keep, s.period)
		traceOverride = envFlag("TRACE") || envFlag("LOG_TRACE")

		outputs := []io.Writer{os.Stdout}
		if s.file != "" {
			var f *os.File
			if f, err = openSink(s.file); err == nil {
				outputs = append(outputs, f)
				sinks = append(sinks, f)
			}
		}

		L = slog.New(newHandler(s.format, &levelVar, outputs...))
		slog.SetDefault(L)
		bindComponents()
		L.LogAttrs(context.Background(), slog.LevelInfo, "",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

func openSink(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return f, nil
}

// newHandler fans records out to one handler per writer behind the context middleware.
func newHandler(format string, level slog.Leveler, outputs ...io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	handlers := make([]slog.Handler, 0, len(outputs))
	for _, w := range outputs {
		if format == "kv" {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		}
	}
	return slogmulti.Pipe(contextFields()).Handler(slogmulti.Fanout(handlers...))
}

func bindComponents() {
	DB = Component("db")
	MIG = Component("db.migrate")
	SEED = Component("db.seed")
	TG = Component("tg")
	TWire = Component("tg.wire")
	WF = Component("workflow")
	Relay = Component("relay")
	Album = Component("album")
}

// Shutdown closes the log files. Later calls do nothing.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	for _, c := range sinks {
		errs = append(errs, c.Close())
	}
	sinks = nil
	return errors.Join(errs...)
}

// Component returns the root logger tagged with a component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes a record keyed by event. A nil logg falls back to the
// logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logg == nil {
		logg = FromContext(ctx)
	}
	if !logg.Enabled(ctx, level) {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs through the named component logger.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Err renders err as the "error" attribute. A nil error yields an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug record should be written.
// TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
