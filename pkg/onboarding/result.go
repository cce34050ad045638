package onboarding

import (
	"fmt"
	"strings"
)

// Step names a stage of onboarding one device.
type Step string

// Onboarding steps.
const (
	StepResolve    Step = "resolve"
	StepDefaults   Step = "defaults"
	StepPlatform   Step = "platform"
	StepLookup     Step = "lookup"
	StepFetch      Step = "fetch"
	StepExport     Step = "export"
	StepParse      Step = "parse"
	StepProperties Step = "properties"
	StepDevice     Step = "device"
	StepVlans      Step = "vlans"
	StepInterfaces Step = "interfaces"
	StepPrefix     Step = "prefix"
	StepAddress    Step = "address"
	StepAssignment Step = "assignment"
	StepPrimary    Step = "primary"
	StepTags       Step = "tags"
)

// StepResult is the outcome of one step on one object.
type StepResult struct {
	Step    Step   `json:"step"`
	Object  string `json:"object,omitempty"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// Result collects what happened while onboarding one device. Failures of
// independent items are recorded and processing continues; Err is set only
// when onboarding of the device was aborted.
type Result struct {
	Device   string       `json:"device"`
	DeviceID string       `json:"device_id,omitempty"`
	Steps    []StepResult `json:"steps"`
	Err      error        `json:"-"`
}

// NewResult returns an empty result for device.
func NewResult(device string) *Result {
	return &Result{Device: device}
}

// Record appends the outcome of a step. A nil err records success.
func (r *Result) Record(step Step, object string, err error) {
	sr := StepResult{Step: step, Object: object, OK: err == nil, Err: err}
	if err != nil {
		sr.Message = err.Error()
	}
	r.Steps = append(r.Steps, sr)
}

// Note appends a successful step with a message.
func (r *Result) Note(step Step, object, message string) {
	r.Steps = append(r.Steps, StepResult{Step: step, Object: object, OK: true, Message: message})
}

// Abort records a fatal failure of step and returns err.
func (r *Result) Abort(step Step, object string, err error) error {
	r.Record(step, object, err)
	r.Err = err
	return err
}

// Merge appends the steps of other.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Steps = append(r.Steps, other.Steps...)
	if r.Err == nil {
		r.Err = other.Err
	}
}

// OK reports whether onboarding completed without any failed step.
func (r *Result) OK() bool {
	return r.Err == nil && len(r.Failures()) == 0
}

// StepOK reports whether every recorded outcome of step succeeded.
func (r *Result) StepOK(step Step) bool {
	for _, s := range r.Steps {
		if s.Step == step && !s.OK {
			return false
		}
	}
	return true
}

// Failures returns the failed steps in order.
func (r *Result) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}

func (r *Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: aborted: %v", r.Device, r.Err)
	}
	failed := r.Failures()
	if len(failed) == 0 {
		return fmt.Sprintf("%s: ok (%d steps)", r.Device, len(r.Steps))
	}
	msgs := make([]string, 0, len(failed))
	for _, f := range failed {
		msgs = append(msgs, fmt.Sprintf("%s %s: %s", f.Step, f.Object, f.Message))
	}
	return fmt.Sprintf("%s: %d of %d steps failed: %s", r.Device, len(failed), len(r.Steps), strings.Join(msgs, "; "))
}
