package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// stderrLogger prints client log lines for --verbose.
type stderrLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func newStderrLogger(w io.Writer) *stderrLogger {
	return &stderrLogger{w: w}
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", msg, fields) }
func (l *stderrLogger) Info(msg string, fields map[string]interface{})  { l.log("INFO", msg, fields) }
func (l *stderrLogger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", msg, fields) }
func (l *stderrLogger) Error(msg string, fields map[string]interface{}) { l.log("ERROR", msg, fields) }

func (l *stderrLogger) log(level, msg string, fields map[string]interface{}) {
	var line strings.Builder

	line.WriteString("[" + level + "] " + msg)

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&line, " %s=%v", key, fields[key])
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintln(l.w, line.String())
}
