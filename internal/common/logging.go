// Package common holds the logger shared by the bridge's packages.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

const (
	logTimeFormat   = "2006-01-02T15:04:05Z07:00"
	defaultLogFile  = "logs/openapi-mcp.log"
	defaultLogBytes = 500 * 1024
	defaultBackups  = 20
)

// LoggingConfig is the [logging] section of the config file.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

func (c LoggingConfig) fileWriter() models.WriterConfiguration {
	w := models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   c.FilePath,
		MaxSize:    int64(c.MaxSizeMB) << 20,
		MaxBackups: c.MaxBackups,
		TimeFormat: logTimeFormat,
	}
	if w.FileName == "" {
		w.FileName = defaultLogFile
	}
	if w.MaxSize <= 0 {
		w.MaxSize = defaultLogBytes
	}
	if w.MaxBackups <= 0 {
		w.MaxBackups = defaultBackups
	}
	return w
}

// Logger is the arbor logger passed between packages.
type Logger struct {
	arbor.ILogger
}

// NewLoggerFromConfig builds the process logger. Console output goes to stderr,
// since stdout carries the MCP stream under the stdio transport.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console"}
	}

	l := arbor.NewLogger()
	for _, out := range outputs {
		switch strings.ToLower(out) {
		case "console":
			l = l.WithConsoleWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				Writer:     os.Stderr,
				TimeFormat: logTimeFormat,
			})
		case "file":
			l = l.WithFileWriter(cfg.fileWriter())
		}
	}
	l = l.WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory}).
		WithLevelFromString(level)
	return &Logger{ILogger: l}
}

// NewLoggerWithOutput writes plain "message key=value" lines to w.
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	arbor.RegisterWriter(arbor.WRITER_CONSOLE, &lineWriter{out: w, level: log.TraceLevel})
	l := arbor.NewLogger().
		WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory}).
		WithLevelFromString(level)
	return &Logger{ILogger: l}
}

// NewSilentLogger discards everything, including what globally registered writers would get.
func NewSilentLogger() *Logger {
	return &Logger{ILogger: arbor.NewLogger().WithWriters([]writers.IWriter{discard{}})}
}

// WithCorrelationId scopes the logger to one request or tool call.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error)           { return len(p), nil }
func (discard) WithLevel(_ log.Level) writers.IWriter { return discard{} }
func (discard) GetFilePath() string                   { return "" }
func (discard) Close() error                          { return nil }

// lineWriter renders arbor's JSON events as single text lines.
type lineWriter struct {
	out   io.Writer
	level log.Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	var evt models.LogEvent
	if err := json.Unmarshal(p, &evt); err != nil {
		return w.out.Write(p)
	}
	if evt.Level < w.level {
		return len(p), nil
	}

	var b strings.Builder
	b.WriteString(evt.Message)
	if evt.CorrelationID != "" {
		fmt.Fprintf(&b, " correlation_id=%s", evt.CorrelationID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, evt.Fields[k])
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, " error=%s", evt.Error)
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *lineWriter) WithLevel(level log.Level) writers.IWriter {
	w.level = level
	return w
}

func (w *lineWriter) GetFilePath() string { return "" }
func (w *lineWriter) Close() error        { return nil }
