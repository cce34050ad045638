// Package journal records what every onboarding run did, one journal per
// run and one entry per device step, so failed steps can be reviewed and
// retried later.
package journal

import (
	"time"

	"github.com/google/uuid"
)

// Status of a journal.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Meta describes one journal.
type Meta struct {
	ID        string    `json:"id"`
	App       string    `json:"app"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one recorded step.
type Entry struct {
	Journal   string    `json:"journal"`
	Timestamp time.Time `json:"timestamp"`
	App       string    `json:"app,omitempty"`
	Device    string    `json:"device"`
	Step      string    `json:"step"`
	Object    string    `json:"object,omitempty"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message,omitempty"`
}

// Filter narrows Entries.
type Filter struct {
	Device      string
	Step        string
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEntry creates a successful entry stamped now.
func NewEntry(journal, device, step string) *Entry {
	return &Entry{
		Journal:   journal,
		Timestamp: time.Now().UTC(),
		Device:    device,
		Step:      step,
		OK:        true,
	}
}

// WithObject sets the object the step worked on.
func (e *Entry) WithObject(object string) *Entry {
	e.Object = object
	return e
}

// WithMessage sets a free-text message.
func (e *Entry) WithMessage(msg string) *Entry {
	e.Message = msg
	return e
}

// WithError marks the entry as failed.
func (e *Entry) WithError(err error) *Entry {
	e.OK = false
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

func (f Filter) match(e *Entry) bool {
	if f.Device != "" && e.Device != f.Device {
		return false
	}
	if f.Step != "" && e.Step != f.Step {
		return false
	}
	if f.FailureOnly && e.OK {
		return false
	}
	return true
}

func (f Filter) page(entries []*Entry) []*Entry {
	if f.Offset > 0 {
		if f.Offset >= len(entries) {
			return nil
		}
		entries = entries[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(entries) {
		entries = entries[:f.Limit]
	}
	return entries
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
