// Package pkglog provides structured logging shared by every daemon
// component, with a trace id carried through context.Context.
package pkglog

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	jobIDKey   ctxKey = "job_id"
)

// Logger wraps logrus.Logger with the engine's component name.
type Logger struct {
	*logrus.Logger
	component string
}

// Config controls logger construction: level, format and output.
type Config struct {
	Level  string
	Format string
	Output string
}

// New builds a Logger for the named component.
func New(component string, cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	switch strings.ToLower(cfg.Output) {
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l, component: component}
}

// NewFromEnv builds a Logger reading PKGKITD_LOG_LEVEL/PKGKITD_LOG_FORMAT,
// defaulting to info/text.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("PKGKITD_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("PKGKITD_LOG_FORMAT"))
	if format == "" {
		format = "text"
	}
	return New(component, Config{Level: level, Format: format})
}

// WithContext returns an entry carrying the component name plus any
// trace/job id stashed in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"component": l.component}
	if tid, ok := ctx.Value(traceIDKey).(string); ok && tid != "" {
		fields["trace_id"] = tid
	}
	if jid, ok := ctx.Value(jobIDKey).(string); ok && jid != "" {
		fields["job_id"] = jid
	}
	return l.Logger.WithFields(fields)
}

// WithJob returns a context carrying a fresh trace id and the given job id.
func WithJob(ctx context.Context, jobID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, uuid.NewString())
	return context.WithValue(ctx, jobIDKey, jobID)
}
