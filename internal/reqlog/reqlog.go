// Package reqlog appends one text entry per request to a shared log file.
package reqlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "05:04:15 02-01-2006"

var separator = strings.Repeat("=", 79)

// Entry is what gets recorded about one request. Body is written only when
// HasBody is set.
type Entry struct {
	Time    time.Time
	IP      string
	Method  string
	URL     string
	Body    string
	HasBody bool
}

// Format renders e as the block of lines appended to the log.
func (e Entry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timestamp: %s\n", e.Time.Format(timestampLayout))
	fmt.Fprintf(&b, "IP: %s\n", orNA(e.IP))
	fmt.Fprintf(&b, "Method: %s\n", orNA(e.Method))
	fmt.Fprintf(&b, "URL: %s\n", orNA(e.URL))
	if e.HasBody {
		fmt.Fprintf(&b, "Body: %s\n", e.Body)
	}
	b.WriteString(separator)
	b.WriteByte('\n')
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Logger serializes appends from concurrent connections.
type Logger struct {
	mutex sync.Mutex // held for one entry
	w     io.Writer
	file  *os.File
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open request log: %w", err)
	}
	return &Logger{w: file, file: file}, nil
}

// New logs to w. Close does not close w.
func New(w io.Writer) *Logger {
	return &Logger{w: w}
}

func (l *Logger) Log(e Entry) error {
	s := e.Format()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, err := io.WriteString(l.w, s); err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
