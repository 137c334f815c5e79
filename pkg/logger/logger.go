package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog. Warnings and errors are also handed to an optional
// LogCollector, which aggregates repeats before they are published.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
	Service    string // tagged on every entry; defaults to "signalscan"
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	service := cfg.Service
	if service == "" {
		service = "signalscan"
	}
	return newLogger(out, service), nil
}

func newLogger(w io.Writer, service string) *Logger {
	zl := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		CallerWithSkipFrameCount(4).
		Logger()
	return &Logger{zl: zl}
}

func openOutput(dst string) (io.Writer, error) {
	switch dst {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that adds fields to every entry.
// The child shares the parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.key, f.value())
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.addTo(e)
	}
	e.Msg(msg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.key] = f.value()
	}
	// skip collect and Warn/Error
	l.collector.AddLog(level, msg, m, callerAt(3))
}

func callerAt(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	if i := strings.LastIndex(file, "SignalScan/"); i >= 0 {
		file = file[i+len("SignalScan/"):]
	} else {
		file = filepath.Base(file)
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// AddCollector attaches a fresh collector, closing any previous one.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Collector returns the attached collector, or nil.
func (l *Logger) Collector() *LogCollector { return l.collector }

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindErr
	kindAny
)

// Field is one structured key/value attached to an entry.
type Field struct {
	key  string
	kind fieldKind
	s    string
	i    int64
	f    float64
	b    bool
	err  error
	v    interface{}
}

func (f Field) addTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.s)
	case kindInt:
		e.Int64(f.key, f.i)
	case kindFloat:
		e.Float64(f.key, f.f)
	case kindBool:
		e.Bool(f.key, f.b)
	case kindErr:
		e.AnErr(f.key, f.err)
	default:
		e.Interface(f.key, f.v)
	}
}

// value is what the collector stores; errors become their message.
func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.s
	case kindInt:
		return f.i
	case kindFloat:
		return f.f
	case kindBool:
		return f.b
	case kindErr:
		if f.err == nil {
			return nil
		}
		return f.err.Error()
	default:
		return f.v
	}
}

func String(key, value string) Field { return Field{key: key, kind: kindString, s: value} }

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

func Int(key string, value int) Field { return Field{key: key, kind: kindInt, i: int64(value)} }

func Int64(key string, value int64) Field { return Field{key: key, kind: kindInt, i: value} }

func Float64(key string, value float64) Field { return Field{key: key, kind: kindFloat, f: value} }

func Bool(key string, value bool) Field { return Field{key: key, kind: kindBool, b: value} }

// Duration logs milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Error(err error) Field { return Field{key: "error", kind: kindErr, err: err} }

func Any(key string, value interface{}) Field { return Field{key: key, kind: kindAny, v: value} }

// Scan fields. Keep these keys stable, dashboards and the collector's
// dedup key both group on them.

func Symbol(symbol string) Field { return String("symbol", symbol) }

func Timeframe(minutes int) Field { return Int("timeframe", minutes) }

func Direction(dir string) Field { return String("direction", dir) }

func Confidence(pct float64) Field { return Float64("confidence", pct) }
