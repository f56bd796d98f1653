// SPDX-License-Identifier: MPL-2.0

// Package ui emits progress signals for long-running export steps.
//
// Every risky step reports a starting status and, once it succeeds, a completed
// status. A failed step never reports its completed status.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	// StatusCreating marks the start of a build or file generation step.
	StatusCreating Status = iota
	// StatusCreated marks a build or file generation step that succeeded.
	StatusCreated
	// StatusUploading marks the start of a push.
	StatusUploading
	// StatusUploaded marks a push that succeeded.
	StatusUploaded
	// StatusDeleting marks the start of an image removal.
	StatusDeleting
	// StatusDeleted marks an image removal that succeeded.
	StatusDeleted
)

type (
	// Status is the kind of progress signal.
	Status int

	// Reporter receives progress signals.
	Reporter interface {
		// Begin announces a group of steps.
		Begin(msg string)
		// Status reports the state of one step.
		Status(status Status, msg string)
		// End closes the group opened by Begin.
		End(msg string)
	}

	// Terminal writes styled progress lines to a writer.
	Terminal struct {
		mu  sync.Mutex
		out io.Writer
	}

	// Event is one recorded progress signal.
	Event struct {
		Kind    string // "begin", "status" or "end"
		Status  Status
		Message string
	}

	// Recorder keeps progress signals in memory.
	Recorder struct {
		mu     sync.Mutex
		events []Event
	}

	nop struct{}
)

var (
	beginStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func (s Status) String() string {
	switch s {
	case StatusCreating:
		return "Creating"
	case StatusCreated:
		return "Created"
	case StatusUploading:
		return "Uploading"
	case StatusUploaded:
		return "Uploaded"
	case StatusDeleting:
		return "Deleting"
	case StatusDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Completed reports whether s marks the end of a step.
func (s Status) Completed() bool {
	return s == StatusCreated || s == StatusUploaded || s == StatusDeleted
}

// NewTerminal returns a Reporter writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Begin implements Reporter.
func (t *Terminal) Begin(msg string) {
	t.println(beginStyle.Render("» " + msg))
}

// Status implements Reporter.
func (t *Terminal) Status(status Status, msg string) {
	style := activeStyle
	marker := "↑"
	if status.Completed() {
		style = doneStyle
		marker = "✓"
	}
	t.println(fmt.Sprintf("  %s %s %s", style.Render(marker), style.Render(status.String()), messageStyle.Render(msg)))
}

// End implements Reporter.
func (t *Terminal) End(msg string) {
	t.println(doneStyle.Render("★ " + msg))
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

// Nop returns a Reporter that discards every signal.
func Nop() Reporter { return nop{} }

func (nop) Begin(string)          {}
func (nop) Status(Status, string) {}
func (nop) End(string)            {}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Begin implements Reporter.
func (r *Recorder) Begin(msg string) { r.add(Event{Kind: "begin", Message: msg}) }

// Status implements Reporter.
func (r *Recorder) Status(status Status, msg string) {
	r.add(Event{Kind: "status", Status: status, Message: msg})
}

// End implements Reporter.
func (r *Recorder) End(msg string) { r.add(Event{Kind: "end", Message: msg}) }

// Events returns a copy of the recorded signals in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Statuses returns only the status signals as "<Status> <message>" strings.
func (r *Recorder) Statuses() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == "status" {
			out = append(out, e.Status.String()+" "+e.Message)
		}
	}
	return out
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}
