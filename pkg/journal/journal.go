package journal

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/sotboard/pkg/onboarding"
	"github.com/newtron-network/sotboard/pkg/util"
)

// Journal is a journal backend.
type Journal interface {
	// Open starts a journal for app and returns its id.
	Open(ctx context.Context, app string) (string, error)
	Record(ctx context.Context, e *Entry) error
	// Finish marks a journal closed. Entries can no longer be added.
	Finish(ctx context.Context, id string) error
	Entries(ctx context.Context, id string, filter Filter) ([]*Entry, error)
	Journals(ctx context.Context) ([]*Meta, error)
	Close() error
}

// New opens the backend named by driver: "file" takes a path, "sqlite"
// and "postgres" take a DSN.
func New(ctx context.Context, driver, dsn string) (Journal, error) {
	switch strings.ToLower(driver) {
	case "", "file":
		return NewFileJournal(dsn, RotationConfig{})
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, driver, dsn)
	}
	return nil, fmt.Errorf("unknown journal driver '%s': %w", driver, util.ErrInvalidConfig)
}

// Recorder writes onboarding results into one journal. It satisfies
// onboarding.Recorder.
type Recorder struct {
	journal Journal
	id      string
	app     string
}

var _ onboarding.Recorder = (*Recorder)(nil)

// NewRecorder opens a journal for app on j.
func NewRecorder(ctx context.Context, j Journal, app string) (*Recorder, error) {
	id, err := j.Open(ctx, app)
	if err != nil {
		return nil, err
	}
	util.WithField("journal", id).Debug("journal opened")
	return &Recorder{journal: j, id: id, app: app}, nil
}

// ID returns the journal id.
func (r *Recorder) ID() string {
	return r.id
}

// RecordResult writes one entry per step of res. An aborted device without
// steps still gets one failed entry.
func (r *Recorder) RecordResult(ctx context.Context, res *onboarding.Result) error {
	if len(res.Steps) == 0 && res.Err != nil {
		e := NewEntry(r.id, res.Device, "onboard").WithError(res.Err)
		e.App = r.app
		return r.journal.Record(ctx, e)
	}
	for _, s := range res.Steps {
		e := NewEntry(r.id, res.Device, string(s.Step)).WithObject(s.Object).WithMessage(s.Message)
		e.App = r.app
		e.OK = s.OK
		if err := r.journal.Record(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Finish closes the journal.
func (r *Recorder) Finish(ctx context.Context) error {
	return r.journal.Finish(ctx, r.id)
}
