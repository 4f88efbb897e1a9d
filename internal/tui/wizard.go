package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/greonxpert/console/pkg/core"
	"github.com/greonxpert/console/pkg/logging"
	"github.com/greonxpert/console/pkg/uploads"
	"github.com/greonxpert/console/pkg/wizard"
)

// infoMsg carries the result of a spawned task back into Update.
type infoMsg struct{ v any }

type tickMsg time.Time

const flashRefresh = 500 * time.Millisecond

func tick() tea.Cmd {
	return tea.Tick(flashRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// WizardModel drives a wizard.Wizard from the keyboard. It is the
// component's host: events go to HandleEvent, and spawned network calls
// come back through HandleInfo on the bubbletea goroutine.
type WizardModel struct {
	title  string
	wiz    *wizard.Wizard
	layout layout

	ctx     context.Context
	cancel  context.CancelFunc
	results chan any
	logger  logging.Logger

	cursor  int
	input   textinput.Model
	spinner spinner.Model
	err     string
	done    bool
	st      styles
}

// Options configures a wizard model.
type Options struct {
	LinkToken string
	Flashes   *core.Flashes
	Logger    logging.Logger
}

// NewContentModel mounts the content wizard.
func NewContentModel(ctx context.Context, backend wizard.Backend, reg *uploads.PreviewRegistry, opts Options) (*WizardModel, error) {
	return newWizardModel(ctx, "Share your content", wizard.NewContentWizard(backend, reg), contentLayout, opts)
}

// NewTestimonialModel mounts the testimonial wizard.
func NewTestimonialModel(ctx context.Context, backend wizard.Backend, reg *uploads.PreviewRegistry, opts Options) (*WizardModel, error) {
	return newWizardModel(ctx, "Share your testimonial", wizard.NewTestimonialWizard(backend, reg), testimonialLayout, opts)
}

func newWizardModel(parent context.Context, title string, w *wizard.Wizard, lay layout, opts Options) (*WizardModel, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Flashes == nil {
		opts.Flashes = core.NewFlashes(0)
	}

	ctx, cancel := context.WithCancel(parent)
	m := &WizardModel{
		title:   title,
		wiz:     w,
		layout:  lay,
		cancel:  cancel,
		results: make(chan any, 4),
		logger:  opts.Logger,
		st:      defaultStyles(),
	}
	ctx = logging.ContextWithLogger(ctx, opts.Logger)
	ctx = core.WithFlashes(ctx, opts.Flashes)
	m.ctx = core.WithSpawner(ctx, core.SpawnerFunc(m.spawn))

	if err := w.Mount(m.ctx, core.Params{"token": opts.LinkToken}, core.Session{}); err != nil {
		cancel()
		return nil, err
	}

	m.input = textinput.New()
	m.input.Prompt = "› "
	m.input.Width = 56
	m.input.CharLimit = 1000
	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.syncInput()
	return m, nil
}

// Wizard returns the driven component.
func (m *WizardModel) Wizard() *wizard.Wizard { return m.wiz }

// Submitted reports whether the run ended on the confirmation step.
func (m *WizardModel) Submitted() bool { return m.wiz.Machine().Done() }

// spawn runs a task off the UI goroutine and hands its result to listen.
func (m *WizardModel) spawn(name string, task core.Task) {
	m.logger.Debug("task started", logging.String("task", name))
	go func() {
		v := task(m.ctx)
		select {
		case m.results <- v:
		case <-m.ctx.Done():
		}
	}()
}

// listen waits for the next task result.
func (m *WizardModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-m.results:
			return infoMsg{v}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *WizardModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), tick(), m.spinner.Tick, textinput.Blink)
}

func (m *WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case infoMsg:
		step := m.wiz.Machine().Current()
		if err := m.wiz.HandleInfo(m.ctx, msg.v); err != nil {
			m.err = err.Error()
		}
		if m.wiz.Machine().Current() != step {
			m.cursor = 0
			m.syncInput()
		}
		return m, m.listen()

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *WizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = ""
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, m.quit()
	case "ctrl+r":
		m.send(wizard.EventRestart, nil)
		m.cursor = 0
		m.syncInput()
		return m, nil
	}

	mach := m.wiz.Machine()
	switch {
	case mach.AtGate():
		m.gateKey(msg)
		return m, nil
	case mach.Done():
		switch msg.String() {
		case "r":
			m.send(wizard.EventRestart, nil)
			m.cursor = 0
			m.syncInput()
		case "q", "enter":
			return m, m.quit()
		}
		return m, nil
	}
	return m, m.formKey(msg)
}

func (m *WizardModel) quit() tea.Cmd {
	m.stop(core.TerminateNormal)
	return tea.Quit
}

// Close terminates the wizard if the program ended without the user
// quitting, e.g. when its context was cancelled.
func (m *WizardModel) Close() {
	m.stop(core.TerminateShutdown)
}

func (m *WizardModel) stop(reason core.TerminateReason) {
	if m.done {
		return
	}
	m.done = true
	if err := m.wiz.Terminate(m.ctx, reason); err != nil {
		m.logger.Warn("terminate", logging.Err(err))
	}
	m.cancel()
}

func (m *WizardModel) send(event string, payload map[string]any) bool {
	if err := m.wiz.HandleEvent(m.ctx, event, payload); err != nil {
		m.err = err.Error()
		m.logger.Debug("event refused", logging.String("event", event), logging.Err(err))
		return false
	}
	return true
}

// navigate sends a step event and refocuses the first field when the
// step changed.
func (m *WizardModel) navigate(event string) {
	step := m.wiz.Machine().Current()
	m.send(event, nil)
	if m.wiz.Machine().Current() != step {
		m.cursor = 0
		m.syncInput()
	}
}

func (m *WizardModel) gateKey(msg tea.KeyMsg) {
	code := &m.wiz.Gate().Code
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		i := code.Focus()
		if code.Slot(i) == "" && i > 0 {
			i--
		}
		m.send(wizard.EventDigit, map[string]any{"index": i, "value": ""})
	case tea.KeyEnter:
		m.send(wizard.EventVerify, nil)
	case tea.KeyRunes:
		if msg.Paste {
			m.send(wizard.EventPaste, map[string]any{"value": string(msg.Runes)})
			return
		}
		for _, r := range msg.Runes {
			m.send(wizard.EventDigit, map[string]any{"index": code.Focus(), "value": string(r)})
		}
	}
}

func (m *WizardModel) fields() []field {
	return m.layout(m.wiz.Machine().Current(), m.wiz.Form())
}

func (m *WizardModel) current() (field, bool) {
	fs := m.fields()
	if len(fs) == 0 {
		return field{}, false
	}
	m.cursor = min(max(m.cursor, 0), len(fs)-1)
	return fs[m.cursor], true
}

func (m *WizardModel) move(delta int) {
	n := len(m.fields())
	if n == 0 {
		return
	}
	m.cursor = (m.cursor + delta + n) % n
	m.syncInput()
}

// syncInput loads the focused field into the text input.
func (m *WizardModel) syncInput() {
	f, ok := m.current()
	m.input.Reset()
	if !ok {
		m.input.Blur()
		return
	}
	m.input.Placeholder = f.placeholder
	if f.kind == kindText {
		m.input.SetValue(m.wiz.Form().Get(f.name))
	}
	m.input.Focus()
}

func (m *WizardModel) formKey(msg tea.KeyMsg) tea.Cmd {
	// The form is frozen until the submission settles.
	if m.wiz.Busy() {
		return nil
	}
	mach := m.wiz.Machine()
	switch msg.String() {
	case "tab", "down":
		m.move(1)
		return nil
	case "shift+tab", "up":
		m.move(-1)
		return nil
	case "ctrl+n":
		m.navigate(wizard.EventNext)
		return nil
	case "ctrl+p":
		m.navigate(wizard.EventBack)
		return nil
	case "ctrl+s":
		m.send(wizard.EventSubmit, nil)
		return nil
	}

	f, ok := m.current()
	if !ok {
		return nil
	}

	switch f.kind {
	case kindChoice:
		return m.choiceKey(f, msg)
	case kindRating:
		return m.ratingKey(f, msg)
	}

	switch msg.String() {
	case "enter":
		switch f.kind {
		case kindList:
			if m.send(wizard.EventAddItem, map[string]any{"name": f.name, "value": m.input.Value()}) {
				m.input.Reset()
			}
		case kindFile:
			if m.send(wizard.EventStage, map[string]any{"slot": f.name, "path": strings.TrimSpace(m.input.Value())}) {
				m.input.Reset()
			}
		default:
			if m.cursor == len(m.fields())-1 {
				if mach.OnLastDataStep() {
					m.send(wizard.EventSubmit, nil)
				} else {
					m.navigate(wizard.EventNext)
				}
				return nil
			}
			m.move(1)
		}
		return nil

	case "ctrl+x":
		switch f.kind {
		case kindList:
			if l := m.wiz.Form().List(f.name); l != nil && l.Len() > 0 {
				m.send(wizard.EventRemoveItem, map[string]any{"name": f.name, "index": l.Len() - 1})
			}
		case kindFile:
			m.send(wizard.EventClear, map[string]any{"slot": f.name})
		}
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	switch f.kind {
	case kindText:
		m.send(wizard.EventField, map[string]any{"name": f.name, "value": m.input.Value()})
	case kindList:
		if v := m.input.Value(); strings.HasSuffix(v, ",") {
			if m.send(wizard.EventAddItem, map[string]any{"name": f.name, "value": v}) {
				m.input.Reset()
			}
		}
	}
	return cmd
}

func (m *WizardModel) choiceKey(f field, msg tea.KeyMsg) tea.Cmd {
	cats := wizard.Categories
	i := slices.Index(cats, wizard.Category(m.wiz.Form().Get(f.name)))

	switch msg.String() {
	case "right", "l", " ":
		i = (i + 1) % len(cats)
	case "left", "h":
		if i <= 0 {
			i = len(cats)
		}
		i--
	case "1", "2", "3":
		i = int(msg.String()[0] - '1')
	case "enter":
		m.navigate(wizard.EventNext)
		return nil
	default:
		return nil
	}
	m.send(wizard.EventSelectCategory, map[string]any{"value": string(cats[i])})
	return nil
}

func (m *WizardModel) ratingKey(f field, msg tea.KeyMsg) tea.Cmd {
	n, _ := strconv.Atoi(m.wiz.Form().Get(f.name))
	switch s := msg.String(); s {
	case "right", "l", "+":
		n = min(n+1, 5)
	case "left", "h", "-":
		n = max(n-1, 1)
	case "1", "2", "3", "4", "5":
		n = int(s[0] - '0')
	case "enter":
		m.move(1)
		return nil
	default:
		return nil
	}
	m.send(wizard.EventField, map[string]any{"name": f.name, "value": strconv.Itoa(n)})
	return nil
}

func (m *WizardModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	mach := m.wiz.Machine()

	b.WriteString(m.st.title.Render(m.title))
	if !mach.AtGate() && !mach.Done() {
		b.WriteString("  ")
		b.WriteString(m.st.step.Render(fmt.Sprintf("step %d of %d · %s", mach.Current(), mach.Len()-2, mach.Name())))
	}
	b.WriteString("\n\n")

	for _, fl := range m.wiz.Flashes().Active() {
		b.WriteString(m.st.flashFor[fl.Kind].Render(fl.Message))
		b.WriteString("\n")
	}

	switch {
	case mach.AtGate():
		m.viewGate(&b)
	case mach.Done():
		b.WriteString(m.st.success.Render(m.wiz.Confirmation()))
		b.WriteString("\n")
		b.WriteString(m.st.help.Render("r start over · q quit"))
	default:
		m.viewForm(&b)
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(m.st.err.Render(m.err))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *WizardModel) viewGate(b *strings.Builder) {
	gate := m.wiz.Gate()
	b.WriteString(m.st.label.Render("Enter your access code"))
	b.WriteString("\n")

	boxes := make([]string, wizard.CodeLength)
	for i := range boxes {
		ch := gate.Code.Slot(i)
		if ch == "" {
			ch = " "
		}
		style := m.st.slot
		if i == gate.Code.Focus() {
			style = m.st.slotOn
		}
		boxes[i] = style.Render(ch)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if gate.Pending() {
		b.WriteString(m.spinner.View() + " checking code…\n")
	}
	b.WriteString(m.st.help.Render("type or paste the code · backspace to correct · esc to quit"))
}

func (m *WizardModel) viewForm(b *strings.Builder) {
	form := m.wiz.Form()
	res := m.wiz.Validation()
	show := m.wiz.ShowErrors()

	for i, f := range m.fields() {
		label := m.st.label.Render(f.label)
		if i == m.cursor {
			label = m.st.active.Render("▸ " + f.label)
		}
		b.WriteString(label)
		b.WriteString("\n  ")

		switch f.kind {
		case kindChoice:
			b.WriteString(m.viewChoice(form.Get(f.name)))
		case kindRating:
			n, _ := strconv.Atoi(form.Get(f.name))
			b.WriteString(m.st.tag.Render(strings.Repeat("★", n)) + m.st.dim.Render(strings.Repeat("☆", 5-n)))
		case kindList:
			if l := form.List(f.name); l != nil {
				for _, item := range l.Items() {
					b.WriteString(m.st.tag.Render("["+item+"]") + " ")
				}
			}
			if i == m.cursor {
				b.WriteString("\n  " + m.input.View())
			}
		case kindFile:
			if s, ok := form.Attachments().Get(f.name); ok {
				b.WriteString(m.st.value.Render(s.File.Name) + " " + m.st.dim.Render(s.Preview.URL))
			} else if i != m.cursor {
				b.WriteString(m.st.dim.Render("none"))
			}
			if i == m.cursor {
				b.WriteString("\n  " + m.input.View())
			}
		default:
			if i == m.cursor {
				b.WriteString(m.input.View())
			} else {
				b.WriteString(m.st.value.Render(form.Get(f.name)))
			}
		}
		b.WriteString("\n")

		if show && res.Has(f.name) {
			b.WriteString("  " + m.st.err.Render(f.label+" "+res.First(f.name)) + "\n")
		}
	}

	if m.wiz.Busy() {
		b.WriteString(m.spinner.View() + " submitting…\n")
		b.WriteString(m.st.help.Render("esc quit"))
		return
	}

	keys := []string{"tab next field", "ctrl+n continue"}
	if m.wiz.Machine().CanGoBack() {
		keys = append(keys, "ctrl+p back")
	}
	if m.wiz.Machine().OnLastDataStep() {
		keys = append(keys, "ctrl+s submit")
	}
	keys = append(keys, "ctrl+x remove", "esc quit")
	b.WriteString(m.st.help.Render(strings.Join(keys, " · ")))
}

func (m *WizardModel) viewChoice(selected string) string {
	allowed := m.wiz.Gate().Access()
	parts := make([]string, 0, len(wizard.Categories))
	for i, c := range wizard.Categories {
		text := fmt.Sprintf("%d %s", i+1, c)
		switch {
		case string(c) == selected:
			parts = append(parts, m.st.active.Render("● "+text))
		case !allowed.Allows(string(c)):
			parts = append(parts, m.st.dim.Render("○ "+text+" (unavailable)"))
		default:
			parts = append(parts, "○ "+text)
		}
	}
	return strings.Join(parts, "   ")
}
