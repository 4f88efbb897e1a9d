package wizard

import (
	"errors"
	"fmt"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/forms"
)

// MsgSubmissionFailed is shown when the server gives no detail.
const MsgSubmissionFailed = "Submission failed, please try again."

// ErrNotFinished is returned by Complete when the machine could not reach
// its terminal step.
var ErrNotFinished = errors.New("wizard: submission accepted but machine not on the last data step")

// Confirmation renders the success message for a submitter.
func Confirmation(email string) string {
	return fmt.Sprintf("Thank you for your submission! A confirmation will be sent to %s.", email)
}

// Dispatcher sends a form as one request and moves the machine to its
// terminal step on success.
type Dispatcher struct {
	machine *Machine
	pending bool
	email   string
}

// NewDispatcher creates a dispatcher driving m.
func NewDispatcher(m *Machine) *Dispatcher {
	return &Dispatcher{machine: m}
}

// Begin validates every data step of f and builds its payload. It
// reports false when a submission is already in flight (nil result) or
// when validation fails (the failing result).
func (d *Dispatcher) Begin(f Form, access api.AccessContext) (*api.Submission, *forms.Result, bool) {
	if d.pending || !d.machine.OnLastDataStep() {
		return nil, nil, false
	}
	res := f.ValidateAll(access)
	if !res.Valid() {
		return nil, res, false
	}
	d.pending = true
	d.email = f.ContactEmail()
	return f.Submission(), res, true
}

// Complete records the outcome of the request started by Begin and
// returns the message to show. On failure the machine stays where it is
// and the message explains why.
func (d *Dispatcher) Complete(err error) (string, error) {
	d.pending = false
	if err != nil {
		return api.UserMessage(err, MsgSubmissionFailed), err
	}
	if !d.machine.Finish() {
		return MsgSubmissionFailed, ErrNotFinished
	}
	return Confirmation(d.email), nil
}

// Pending reports whether a submission is in flight.
func (d *Dispatcher) Pending() bool { return d.pending }

// Reset forgets any in-flight submission.
func (d *Dispatcher) Reset() {
	d.pending = false
	d.email = ""
}
