// Package progress carries human-readable status messages from a running
// pipeline to whichever front-end is watching it.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Message is one status line emitted by a pipeline stage.
type Message struct {
	Time  time.Time `json:"time"`
	Stage string    `json:"stage"`
	Text  string    `json:"text"`
}

func (m Message) String() string {
	if m.Stage == "" {
		return m.Text
	}
	return fmt.Sprintf("[%s] %s", m.Stage, m.Text)
}

// Reporter receives progress messages from pipeline stages.
type Reporter interface {
	Report(stage, text string)
}

// Reportf formats a message and sends it to r. A nil reporter is ignored.
func Reportf(r Reporter, stage, format string, args ...any) {
	if r == nil {
		return
	}
	r.Report(stage, fmt.Sprintf(format, args...))
}

// Nop discards every message.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(string, string) {}

// Queue is a FIFO of messages safe for one producer and any number of
// pollers. The zero value is not usable; call NewQueue.
type Queue struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items []Message
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used to timestamp messages and drive Poll.
func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Report appends a message. It never blocks on consumers.
func (q *Queue) Report(stage, text string) {
	q.mu.Lock()
	q.items = append(q.items, Message{Time: q.clock.Now(), Stage: stage, Text: text})
	q.mu.Unlock()
}

// Drain removes and returns all queued messages in the order they arrived.
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of undrained messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Poll drains the queue every interval and passes each message to fn until
// ctx is done. Messages still queued at that point are delivered before Poll
// returns.
func (q *Queue) Poll(ctx context.Context, interval time.Duration, fn func(Message)) {
	ticker := q.clock.NewTicker(interval)
	defer ticker.Stop()

	deliver := func() {
		for _, m := range q.Drain() {
			fn(m)
		}
	}

	for {
		select {
		case <-ctx.Done():
			deliver()
			return
		case <-ticker.Chan():
			deliver()
		}
	}
}

// Log is a bounded, append-only message history. The serve front-end keeps
// one per run so status pages can be re-rendered at any time.
type Log struct {
	mu    sync.RWMutex
	max   int
	items []Message
}

// NewLog creates a history that retains at most max messages (0 = unbounded).
func NewLog(max int) *Log {
	return &Log{max: max}
}

// Append adds messages, dropping the oldest when over capacity.
func (l *Log) Append(msgs ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, msgs...)
	if l.max > 0 && len(l.items) > l.max {
		l.items = append([]Message(nil), l.items[len(l.items)-l.max:]...)
	}
}

// Messages returns a copy of the retained history.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message(nil), l.items...)
}
