package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level defines the log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

var (
	mu           sync.RWMutex
	currentLevel = InfoLevel
	output       io.Writer = os.Stderr
	jsonFormat   bool
	base         = build()
)

// build 需要在持有 mu 的情况下调用（包初始化除外）
func build() zerolog.Logger {
	w := output
	if !jsonFormat {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: "2006/01/02 15:04:05", NoColor: true}
	}
	return zerolog.New(w).Level(currentLevel.zerolog()).With().Timestamp().Logger()
}

// SetLevel sets the global log level
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = ParseLevel(levelStr)
	base = build()
}

// SetOutput sets the output destination for the logger
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// SetFormat 选择输出格式：json 输出结构化日志，其它值输出可读文本
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	jsonFormat = strings.EqualFold(format, "json")
	base = build()
}

// Component 返回带 component 字段的子 logger，供需要结构化字段的调用方使用
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", name).Logger()
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a message at DebugLevel
func Debug(v ...interface{}) {
	l := current()
	l.Debug().Msg(fmt.Sprint(v...))
}

// Debugf logs a formatted message at DebugLevel
func Debugf(format string, v ...interface{}) {
	l := current()
	l.Debug().Msgf(format, v...)
}

// Info logs a message at InfoLevel
func Info(v ...interface{}) {
	l := current()
	l.Info().Msg(fmt.Sprint(v...))
}

// Infof logs a formatted message at InfoLevel
func Infof(format string, v ...interface{}) {
	l := current()
	l.Info().Msgf(format, v...)
}

// Warn logs a message at WarnLevel
func Warn(v ...interface{}) {
	l := current()
	l.Warn().Msg(fmt.Sprint(v...))
}

// Warnf logs a formatted message at WarnLevel
func Warnf(format string, v ...interface{}) {
	l := current()
	l.Warn().Msgf(format, v...)
}

// Error logs a message at ErrorLevel
func Error(v ...interface{}) {
	l := current()
	l.Error().Msg(fmt.Sprint(v...))
}

// Errorf logs a formatted message at ErrorLevel
func Errorf(format string, v ...interface{}) {
	l := current()
	l.Error().Msgf(format, v...)
}

// Fatal logs a message at FatalLevel and exits
func Fatal(v ...interface{}) {
	l := current()
	l.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted message at FatalLevel and exits
func Fatalf(format string, v ...interface{}) {
	l := current()
	l.WithLevel(zerolog.FatalLevel).Msgf(format, v...)
	os.Exit(1)
}
