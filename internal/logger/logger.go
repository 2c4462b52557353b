package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string { return strings.ToUpper(l.String()) }
}

// Logger prints either "[LEVEL] msg key=value" lines or one JSON object per
// line. A nil *Logger discards everything.
type Logger struct {
	json bool
	zl   zerolog.Logger
}

func New(jsonOutput bool) *Logger {
	return NewWithWriter(os.Stdout, jsonOutput)
}

func NewWithWriter(w io.Writer, jsonOutput bool) *Logger {
	l := &Logger{json: jsonOutput}
	if jsonOutput {
		l.zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		l.zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
			FormatLevel: func(i any) string {
				s, _ := i.(string)
				return "[" + strings.ToUpper(s) + "]"
			},
		})
	}
	l.zl = l.zl.Level(zerolog.InfoLevel)
	return l
}

// Verbose enables Debug output.
func (l *Logger) Verbose(on bool) *Logger {
	if l == nil {
		return nil
	}
	lvl := zerolog.InfoLevel
	if on {
		lvl = zerolog.DebugLevel
	}
	l.zl = l.zl.Level(lvl)
	return l
}

func (l *Logger) log(level zerolog.Level, msg string, fields map[string]any) {
	if l == nil {
		return
	}
	ev := l.zl.WithLevel(level)
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(zerolog.ErrorLevel, msg, fields) }

// JSONEnabled reports whether this logger is configured to emit JSON output.
func (l *Logger) JSONEnabled() bool { return l != nil && l.json }
