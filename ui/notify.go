package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Notifier receives user-facing messages. Implementations must not block
// and must never fail the caller.
type Notifier interface {
	Notify(message string, severity Severity)
}

// ConsoleNotifier prints styled messages to Out (stderr when nil).
type ConsoleNotifier struct {
	Out io.Writer
	mu  sync.Mutex
}

func (c *ConsoleNotifier) Notify(message string, severity Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintln(out, SeverityStyle(severity).Render(message))
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, Severity) {}

// Note is one recorded notification.
type Note struct {
	Message  string
	Severity Severity
}

// RecordingNotifier keeps every notification in memory. The TUI drains it
// to show a status line.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []Note
}

func (r *RecordingNotifier) Notify(message string, severity Severity) {
	r.mu.Lock()
	r.notes = append(r.notes, Note{Message: message, Severity: severity})
	r.mu.Unlock()
}

// Drain returns the recorded notes and forgets them.
func (r *RecordingNotifier) Drain() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}
