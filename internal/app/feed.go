package app

import (
	"sync"
	"time"
)

// EventKind names a submission change.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventGraded    EventKind = "graded"
	EventReviewed  EventKind = "reviewed"
	EventUpdated   EventKind = "updated"
)

// Event is published after a submission is stored or changed.
type Event struct {
	Kind         EventKind `json:"kind"`
	SubmissionID string    `json:"submissionId"`
	ExamID       string    `json:"examId"`
	StudentID    string    `json:"studentId"`
	At           time.Time `json:"at"`
}

// Feed fans submission events out to subscribers. A nil *Feed discards events.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a cancel func that must be called to release it.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber without blocking the writer.
func (f *Feed) Publish(ev Event) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// Full buffer: drop the oldest event so slow readers never stall grading.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
