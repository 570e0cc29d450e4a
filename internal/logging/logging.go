// Package logging builds the slog loggers of the server and the CLI client.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config описывает логгер сервера
type Config struct {
	Level string // debug, info, warn, error
	File  string // если задан, логи дублируются в файл с ротацией
}

// ParseLevel переводит строковый уровень в slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewServer создает JSON логгер сервера. Возвращаемый io.Closer закрывает
// файл с ротацией (если он используется) и всегда не nil.
func NewServer(cfg Config, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out              = stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(stdout, file)
		closer = file
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

// NewClient создает логгер CLI: человекочитаемый вывод в stderr,
// по умолчанию только предупреждения и ошибки.
func NewClient(w io.Writer, debug bool) *slog.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		Level:           level,
		Prefix:          "dreamjournal",
	})
	return slog.New(handler)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
