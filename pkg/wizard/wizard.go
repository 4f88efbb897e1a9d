// Package wizard implements the gated multi-step submission flows: an
// access gate, a step machine, category-conditional forms with staged
// attachments, and a single-request submission.
//
// A Wizard is a core.Component. Network calls run as spawned tasks and
// come back through HandleInfo; results that arrive after a restart or
// after Terminate are dropped.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/greonxpert/console/pkg/api"
	"github.com/greonxpert/console/pkg/core"
	"github.com/greonxpert/console/pkg/forms"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/uploads"
)

// Events understood by HandleEvent.
const (
	EventDigit          = "digit"           // {index, value}
	EventPaste          = "paste"           // {value}
	EventVerify         = "verify"          // {}
	EventSelectCategory = "select_category" // {value}
	EventField          = "field"           // {name, value}
	EventAddItem        = "add_item"        // {name, value}
	EventRemoveItem     = "remove_item"     // {name, index}
	EventStage          = "stage"           // {slot, path} or {slot, file}
	EventClear          = "clear"           // {slot}
	EventNext           = "next"            // {}
	EventBack           = "back"            // {}
	EventSubmit         = "submit"          // {}
	EventRestart        = "restart"         // {}
)

// Errors returned by HandleEvent.
var (
	ErrMissingLinkToken = errors.New("wizard: link token is required")
	ErrLocked           = errors.New("wizard: access code not validated")
	ErrFinished         = errors.New("wizard: submission already completed")
	ErrSubmitting       = errors.New("wizard: submission in progress")
	ErrUnknownField     = errors.New("wizard: unknown field")
	ErrUnknownEvent     = errors.New("wizard: unknown event")
)

// MsgAccessGranted is flashed when the gate opens.
const MsgAccessGranted = "Access granted"

// Backend is the server a wizard talks to. *api.Client implements it.
type Backend interface {
	ValidateAccess(ctx context.Context, linkToken, code string) (api.AccessContext, error)
	Submit(ctx context.Context, path string, sub *api.Submission) (string, error)
}

type accessResult struct {
	gen    int
	access api.AccessContext
	err    error
}

type submitResult struct {
	gen int
	err error
}

// Wizard is one run of a gated submission flow.
type Wizard struct {
	name       string
	backend    Backend
	form       Form
	submitPath func(linkToken string) string

	machine    *Machine
	gate       Gate
	dispatcher *Dispatcher

	linkToken    string
	validation   *forms.Result
	showErrors   bool
	confirmation string

	// gen changes on restart and terminate; results of older tasks are
	// dropped.
	gen        int
	terminated bool

	flashes *core.Flashes
	logger  logging.Logger
}

// NewContentWizard creates the content submission wizard (Blog, Video,
// Resources).
func NewContentWizard(backend Backend, reg *uploads.PreviewRegistry) *Wizard {
	return newWizard("content-wizard", backend, NewContentForm(reg), ContentSteps, api.ContentSubmitPath)
}

// NewTestimonialWizard creates the testimonial submission wizard.
func NewTestimonialWizard(backend Backend, reg *uploads.PreviewRegistry) *Wizard {
	return newWizard("testimonial-wizard", backend, NewTestimonialForm(reg), TestimonialSteps, api.TestimonialSubmitPath)
}

func newWizard(name string, backend Backend, form Form, steps []string, path func(string) string) *Wizard {
	m := NewMachine(steps...)
	return &Wizard{
		name:       name,
		backend:    backend,
		form:       form,
		submitPath: path,
		machine:    m,
		dispatcher: NewDispatcher(m),
		validation: forms.NewResult(),
		flashes:    core.NewFlashes(0),
		logger:     logging.Nop{},
	}
}

func (w *Wizard) Name() string { return w.name }

// Mount expects the link token in params["token"].
func (w *Wizard) Mount(ctx context.Context, params core.Params, session core.Session) error {
	w.linkToken = params.Get("token")
	if w.linkToken == "" {
		return ErrMissingLinkToken
	}
	if f := core.FlashesFromContext(ctx); f != nil {
		w.flashes = f
	}
	w.logger = logging.L(ctx).With(logging.Component(w.name))
	w.restart()
	return nil
}

func (w *Wizard) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case EventDigit:
		if w.gate.Authenticated() {
			return nil
		}
		if !w.gate.Code.Set(core.PayloadInt(payload, "index"), core.PayloadString(payload, "value")) {
			return nil
		}
		return w.verify(ctx)

	case EventPaste:
		if w.gate.Authenticated() {
			return nil
		}
		w.gate.Code.Paste(core.PayloadString(payload, "value"))
		return w.verify(ctx)

	case EventVerify:
		return w.verify(ctx)

	case EventNext:
		return w.next()

	case EventBack:
		if w.dispatcher.Pending() {
			return nil
		}
		if w.machine.Back() {
			w.showErrors = false
			w.revalidate()
			w.logger.Debug("step back", logging.Step(w.machine.Name()))
		}
		return nil

	case EventSubmit:
		return w.submit(ctx)

	case EventRestart:
		w.restart()
		return nil
	}

	if err := w.editable(); err != nil {
		return err
	}
	defer w.revalidate()

	switch event {
	case EventSelectCategory:
		return w.set("category", core.PayloadString(payload, "value"))

	case EventField:
		return w.set(core.PayloadString(payload, "name"), core.PayloadString(payload, "value"))

	case EventAddItem:
		l, err := w.list(core.PayloadString(payload, "name"))
		if err != nil {
			return err
		}
		l.Add(strings.TrimSuffix(core.PayloadString(payload, "value"), ","))
		return nil

	case EventRemoveItem:
		l, err := w.list(core.PayloadString(payload, "name"))
		if err != nil {
			return err
		}
		l.RemoveAt(core.PayloadInt(payload, "index"))
		return nil

	case EventStage:
		return w.stage(payload)

	case EventClear:
		slot := core.PayloadString(payload, "slot")
		if err := w.form.Attachments().Clear(slot); err != nil {
			return err
		}
		w.logger.Debug("attachment cleared", logging.Slot(slot))
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
}

func (w *Wizard) HandleInfo(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case accessResult:
		if w.stale(m.gen) {
			return nil
		}
		text, ok := w.gate.Complete(m.access, m.err)
		if !ok {
			w.logger.Warn("access code rejected", logging.Err(m.err))
			w.flashes.Put(core.FlashError, text)
			return nil
		}
		w.machine.Unlock()
		w.revalidate()
		w.flashes.Put(core.FlashSuccess, MsgAccessGranted)
		w.logger.Debug("gate unlocked", logging.Step(w.machine.Name()))

	case submitResult:
		if w.stale(m.gen) {
			return nil
		}
		text, err := w.dispatcher.Complete(m.err)
		if err != nil {
			w.logger.Warn("submission failed", logging.Err(err))
			w.flashes.Put(core.FlashError, text)
			return nil
		}
		w.confirmation = text
		w.flashes.Put(core.FlashSuccess, text)
		w.logger.Info("submission completed")
		return w.form.Reset()
	}
	return nil
}

// Terminate releases every preview. Results still in flight are dropped
// when they arrive.
func (w *Wizard) Terminate(ctx context.Context, reason core.TerminateReason) error {
	w.terminated = true
	w.gen++
	w.logger.Debug("terminated", logging.String("reason", reason.String()))
	return w.form.Attachments().Close()
}

func (w *Wizard) stale(gen int) bool {
	if w.terminated || gen != w.gen {
		w.logger.Debug("discarding stale result")
		return true
	}
	return false
}

func (w *Wizard) verify(ctx context.Context) error {
	code, ok := w.gate.Begin()
	if !ok {
		return nil
	}
	backend, token, gen := w.backend, w.linkToken, w.gen
	return w.spawn(ctx, "validate-access", func(ctx context.Context) any {
		access, err := backend.ValidateAccess(ctx, token, code)
		return accessResult{gen: gen, access: access, err: err}
	})
}

func (w *Wizard) next() error {
	if w.dispatcher.Pending() {
		return nil
	}
	if err := w.editable(); err != nil {
		return err
	}
	valid := w.revalidate().Valid()
	if !w.machine.Advance(valid) {
		w.showErrors = !valid
		return nil
	}
	w.showErrors = false
	w.revalidate()
	w.logger.Debug("step forward", logging.Step(w.machine.Name()))
	return nil
}

func (w *Wizard) submit(ctx context.Context) error {
	if w.dispatcher.Pending() {
		return nil
	}
	if err := w.editable(); err != nil {
		return err
	}
	sub, res, ok := w.dispatcher.Begin(w.form, w.gate.Access())
	if !ok {
		if res != nil {
			w.validation = res
			w.showErrors = true
		}
		return nil
	}
	backend, path, gen := w.backend, w.submitPath(w.linkToken), w.gen
	return w.spawn(ctx, "submit", func(ctx context.Context) any {
		_, err := backend.Submit(ctx, path, sub)
		return submitResult{gen: gen, err: err}
	})
}

// spawn runs task in the background when the context carries a spawner,
// and inline otherwise.
func (w *Wizard) spawn(ctx context.Context, name string, task core.Task) error {
	if core.Spawn(ctx, name, task) {
		return nil
	}
	return w.HandleInfo(ctx, task(ctx))
}

func (w *Wizard) restart() {
	w.gen++
	if err := w.form.Reset(); err != nil {
		w.logger.Warn("releasing attachments", logging.Err(err))
	}
	w.gate.Reset()
	w.dispatcher.Reset()
	w.machine.Reset()
	w.confirmation = ""
	w.showErrors = false
	w.validation = forms.NewResult()
}

func (w *Wizard) editable() error {
	if !w.gate.Authenticated() {
		return ErrLocked
	}
	if w.machine.Done() {
		return ErrFinished
	}
	if w.dispatcher.Pending() {
		return ErrSubmitting
	}
	return nil
}

func (w *Wizard) set(field, value string) error {
	if !w.form.Set(field, value) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

func (w *Wizard) list(name string) (*forms.List, error) {
	l := w.form.List(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return l, nil
}

func (w *Wizard) stage(payload map[string]any) error {
	slot := core.PayloadString(payload, "slot")

	f, ok := payload["file"].(uploads.File)
	if !ok {
		var err error
		f, err = uploads.FileFromPath(core.PayloadString(payload, "path"))
		if err != nil {
			return err
		}
	}

	if _, err := w.form.Attachments().Stage(slot, f); err != nil {
		return err
	}
	w.logger.Debug("attachment staged", logging.Slot(slot), logging.String("file", f.Name))
	return nil
}

func (w *Wizard) revalidate() *forms.Result {
	if w.machine.AtGate() || w.machine.Done() {
		w.validation = forms.NewResult()
	} else {
		w.validation = w.form.ValidateStep(w.machine.Current(), w.gate.Access())
	}
	return w.validation
}

// Machine returns the step machine.
func (w *Wizard) Machine() *Machine { return w.machine }

// Gate returns the access gate.
func (w *Wizard) Gate() *Gate { return &w.gate }

// Form returns the collected data.
func (w *Wizard) Form() Form { return w.form }

// Validation returns the current step's result.
func (w *Wizard) Validation() *forms.Result { return w.validation }

// ShowErrors reports whether the last forward move was refused.
func (w *Wizard) ShowErrors() bool { return w.showErrors }

// Confirmation returns the success message once the terminal step is
// reached.
func (w *Wizard) Confirmation() string { return w.confirmation }

// Busy reports whether a request is in flight.
func (w *Wizard) Busy() bool { return w.gate.Pending() || w.dispatcher.Pending() }

// Flashes returns the banner set.
func (w *Wizard) Flashes() *core.Flashes { return w.flashes }
