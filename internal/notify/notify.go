// Package notify delivers user-facing messages about sync activity.
package notify

import (
	"log/slog"
	"sync"
)

// Notifier shows short messages and transfer progress to the user.
// Implementations must be safe for concurrent use and must not block.
type Notifier interface {
	SendText(title, body string)
	// ReportProgress updates the transfer identified by id. fraction is in
	// [0,1]; a negative fraction means the total size is unknown.
	ReportProgress(id, label string, fraction float64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) SendText(string, string)                {}
func (Nop) ReportProgress(string, string, float64) {}

// Log writes notifications to a structured logger. Progress is logged at
// debug level in quarter steps.
type Log struct {
	Logger *slog.Logger

	mu   sync.Mutex
	last map[string]int
}

func (l *Log) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Log) SendText(title, body string) {
	l.logger().Info(title, "body", body)
}

func (l *Log) ReportProgress(id, label string, fraction float64) {
	step := -1
	if fraction >= 0 {
		step = int(fraction * 4)
	}
	l.mu.Lock()
	if l.last == nil {
		l.last = make(map[string]int)
	}
	prev, seen := l.last[id]
	if seen && prev == step {
		l.mu.Unlock()
		return
	}
	if step >= 4 {
		delete(l.last, id)
	} else {
		l.last[id] = step
	}
	l.mu.Unlock()
	l.logger().Debug("transfer progress", "id", id, "label", label, "fraction", fraction)
}

// Message is one SendText call captured by Recorder.
type Message struct {
	Title string
	Body  string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	progress map[string][]float64
}

func (r *Recorder) SendText(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Title: title, Body: body})
}

func (r *Recorder) ReportProgress(id, _ string, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		r.progress = make(map[string][]float64)
	}
	r.progress[id] = append(r.progress[id], fraction)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Progress returns the fractions reported for id, in order.
func (r *Recorder) Progress(id string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress[id]...)
}

// ProgressIDs returns how many distinct transfers reported progress.
func (r *Recorder) ProgressIDs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.progress)
}
