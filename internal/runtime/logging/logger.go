package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	configpkg "github.com/drblury/botcore/internal/runtime/config"
)

// Level is the severity of a log record. Each level has its own log file.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists every level in ascending severity.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

// ParseLevel accepts the lower-case level names.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// TimestampLayout is the layout used in front of every console and file line.
const TimestampLayout = time.DateTime

// Sink names reported to SinkFailureFunc.
const (
	SinkFile    = "file"
	SinkChannel = "channel"
)

// Record is one log entry. It is immutable once built.
type Record struct {
	Level     Level
	Message   string
	Timestamp time.Time
	ToFile    bool
	ChannelID string
}

// Line renders the record as written to the console and file sinks.
func (r Record) Line() string {
	return "[" + r.Timestamp.Format(TimestampLayout) + "] " + r.Message + "\n"
}

// ChannelSender delivers plain text to a remote channel.
type ChannelSender interface {
	SendText(ctx context.Context, channelID, text string) error
}

// SinkFailureFunc is told about every swallowed sink failure.
type SinkFailureFunc func(sink string, err error)

// Options configures a Logger. Zero values fall back to sensible defaults.
type Options struct {
	// Dir holds the per-level log files. Defaults to "logs".
	Dir string
	// Stdout receives debug and info lines, Stderr warn and error lines.
	Stdout io.Writer
	Stderr io.Writer
	// Channel delivers records mirrored to a remote channel. May be set later
	// with SetChannelSender.
	Channel ChannelSender
	// Categories drives the category helpers.
	Categories configpkg.LogsConfig
	// OnSinkFailure is called for swallowed file and channel failures.
	OnSinkFailure SinkFailureFunc
	// SendTimeout bounds one remote channel delivery. Defaults to 10s.
	SendTimeout time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Logger writes records to the console, the per-level files and remote
// channels. Console and file writes for one record happen under a single lock,
// so lines keep call order and never interleave. Remote delivery is
// fire-and-forget.
type Logger struct {
	mu     sync.Mutex
	dir    string
	stdout io.Writer
	stderr io.Writer

	senderMu sync.RWMutex
	sender   ChannelSender
	sends    sync.WaitGroup

	categories    configpkg.LogsConfig
	onSinkFailure SinkFailureFunc
	sendTimeout   time.Duration
	now           func() time.Time
}

// NewLogger builds a Logger from opts.
func NewLogger(opts Options) *Logger {
	l := &Logger{
		dir:           opts.Dir,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
		sender:        opts.Channel,
		categories:    opts.Categories,
		onSinkFailure: opts.OnSinkFailure,
		sendTimeout:   opts.SendTimeout,
		now:           opts.Now,
	}
	if l.dir == "" {
		l.dir = "logs"
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.sendTimeout <= 0 {
		l.sendTimeout = 10 * time.Second
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// SetChannelSender replaces the remote channel sender.
func (l *Logger) SetChannelSender(sender ChannelSender) {
	l.senderMu.Lock()
	defer l.senderMu.Unlock()
	l.sender = sender
}

// SetSinkFailureFunc replaces the sink failure callback.
func (l *Logger) SetSinkFailureFunc(fn SinkFailureFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSinkFailure = fn
}

// Log is the most atomic log function. An empty message is dropped on every
// sink. The console always gets the line; toFile appends it to
// <dir>/<level>.log; a non-empty channelID mirrors the raw message to that
// remote channel. Sink failures never reach the caller. Unknown levels are
// logged as info.
func (l *Logger) Log(level Level, message string, toFile bool, channelID string) {
	if message == "" {
		return
	}
	if !slices.Contains(Levels, level) {
		level = LevelInfo
	}

	rec := Record{
		Level:     level,
		Message:   message,
		Timestamp: l.now(),
		ToFile:    toFile,
		ChannelID: channelID,
	}
	l.write(rec)

	if rec.ChannelID != "" {
		l.sendToChannel(rec)
	}
}

// Debug, Info, Warn and Error log to the console and the level file.
func (l *Logger) Debug(message string) { l.Log(LevelDebug, message, true, "") }
func (l *Logger) Info(message string)  { l.Log(LevelInfo, message, true, "") }
func (l *Logger) Warn(message string)  { l.Log(LevelWarn, message, true, "") }
func (l *Logger) Error(message string) { l.Log(LevelError, message, true, "") }

func (l *Logger) write(rec Record) {
	line := rec.Line()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Console errors are ignored: there is nowhere left to report them.
	_, _ = io.WriteString(l.consoleFor(rec.Level), line)

	if !rec.ToFile {
		return
	}
	if err := l.appendFile(rec.Level, line); err != nil {
		l.reportFailure(SinkFile, err)
	}
}

func (l *Logger) consoleFor(level Level) io.Writer {
	switch level {
	case LevelWarn, LevelError:
		return l.stderr
	default:
		return l.stdout
	}
}

// appendFile must be called with l.mu held.
func (l *Logger) appendFile(level Level, line string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(l.dir, string(level)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	_, writeErr := f.WriteString(line)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("append %s: %w", path, writeErr)
	}
	return closeErr
}

func (l *Logger) sendToChannel(rec Record) {
	l.senderMu.RLock()
	sender := l.sender
	l.senderMu.RUnlock()
	if sender == nil {
		return
	}

	l.sends.Add(1)
	go func() {
		defer l.sends.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.sendTimeout)
		defer cancel()
		if err := sender.SendText(ctx, rec.ChannelID, rec.Message); err != nil {
			l.mu.Lock()
			l.reportFailure(SinkChannel, err)
			l.mu.Unlock()
		}
	}()
}

// reportFailure must be called with l.mu held.
func (l *Logger) reportFailure(sink string, err error) {
	if l.onSinkFailure != nil {
		l.onSinkFailure(sink, err)
	}
}

// Wait blocks until every in-flight remote delivery has finished.
func (l *Logger) Wait() {
	l.sends.Wait()
}

// Close waits for in-flight remote deliveries.
func (l *Logger) Close() error {
	l.Wait()
	return nil
}
