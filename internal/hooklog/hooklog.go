// Package hooklog writes structured event logs under the project state
// directory, with rotation handled by lumberjack.
package hooklog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/klauern/hookloop/internal/config"
)

// Entry is one logged hook invocation.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger appends entries to <stateDir>/logs/<key>.log, one file per hook
// key. A disabled logger is a no-op; log failures never affect the hook
// response.
type Logger struct {
	cfg config.LogConfig
	out io.WriteCloser
}

// New returns a logger for one hook key under the project state directory.
// When logging is disabled no file is opened.
func New(stateDir string, cfg config.LogConfig, key string) *Logger {
	l := &Logger{cfg: cfg}
	if !cfg.Enabled {
		return l
	}
	l.out = &lumberjack.Logger{
		Filename:   filepath.Join(stateDir, "logs", key+".log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	return l
}

// Log writes one entry. Errors go to stderr and are otherwise swallowed.
func (l *Logger) Log(event, sessionID, toolName string, details map[string]any) {
	if l == nil || l.out == nil {
		return
	}
	entry := Entry{
		Timestamp: time.Now().Format(time.RFC3339),
		Event:     event,
		SessionID: sessionID,
		ToolName:  toolName,
		Details:   details,
	}
	var data []byte
	var err error
	if l.cfg.Format == config.LogFormatPretty {
		data, err = json.MarshalIndent(entry, "", "  ")
	} else {
		data, err = json.Marshal(entry)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log entry: %v\n", err)
	}
}

// Close flushes the underlying writer.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}
