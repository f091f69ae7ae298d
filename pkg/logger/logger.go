package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers need not import logrus.
type Fields = logrus.Fields

// Log wraps a logrus logger.
type Log struct {
	*logrus.Logger
}

// Entry wraps a logrus entry carrying component fields.
type Entry struct {
	*logrus.Entry
}

// Options configure the process logger.
type Options struct {
	Level      string // logrus level name, info when empty or unknown
	File       string // optional rotating file sink next to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	global = New(Options{Level: os.Getenv("LOG_LEVEL")})
)

// New builds a JSON logger writing to stdout and, when File is set, to a
// rotating file.
func New(opts Options) *Log {
	l := logrus.New()
	l.SetLevel(parseLevel(opts.Level))
	l.SetReportCaller(true)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			Compress:   true,
		})
	}
	l.SetOutput(out)
	return &Log{Logger: l}
}

// Init replaces the process logger.
func Init(opts Options) *Log {
	l := New(opts)
	mu.Lock()
	global = l
	mu.Unlock()
	return l
}

// Get returns the process logger.
func Get() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithComponent tags entries from the process logger with a component name.
func WithComponent(component string) *Entry {
	return Get().WithComponent(component)
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(fields)}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func parseLevel(s string) logrus.Level {
	if lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s))); err == nil {
		return lvl
	}
	return logrus.InfoLevel
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
