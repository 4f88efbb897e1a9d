package wizard

// Step is an index into a Machine's ordered steps.
type Step int

// Machine tracks the current step of a wizard. The first step is the
// access gate and the last is the terminal confirmation; everything in
// between collects data.
//
// Forward moves out of the gate go through Unlock and into the terminal
// step through Finish. Back never returns to the gate, since that would
// throw away the authenticated state, and never leaves the terminal step.
type Machine struct {
	names   []string
	current Step
}

// NewMachine creates a machine over the given step names. At least three
// steps are required (gate, one data step, terminal).
func NewMachine(names ...string) *Machine {
	if len(names) < 3 {
		panic("wizard: a machine needs a gate, a data step and a terminal step")
	}
	return &Machine{names: names}
}

// Current returns the active step.
func (m *Machine) Current() Step { return m.current }

// Name returns the active step's name.
func (m *Machine) Name() string { return m.names[m.current] }

// StepName returns the name of s.
func (m *Machine) StepName(s Step) string {
	if s < 0 || int(s) >= len(m.names) {
		return ""
	}
	return m.names[s]
}

// Len returns the number of steps.
func (m *Machine) Len() int { return len(m.names) }

func (m *Machine) terminal() Step { return Step(len(m.names) - 1) }

// AtGate reports whether the machine is on the gate step.
func (m *Machine) AtGate() bool { return m.current == 0 }

// Done reports whether the terminal step was reached.
func (m *Machine) Done() bool { return m.current == m.terminal() }

// OnLastDataStep reports whether the next forward move is a submission.
func (m *Machine) OnLastDataStep() bool { return m.current == m.terminal()-1 }

// Unlock moves from the gate to the first data step.
func (m *Machine) Unlock() bool {
	if !m.AtGate() {
		return false
	}
	m.current = 1
	return true
}

// CanAdvance reports whether Advance(valid) would move.
func (m *Machine) CanAdvance(valid bool) bool {
	return valid && !m.AtGate() && m.current < m.terminal()-1
}

// Advance moves one data step forward when valid is true.
func (m *Machine) Advance(valid bool) bool {
	if !m.CanAdvance(valid) {
		return false
	}
	m.current++
	return true
}

// CanGoBack reports whether Back would move.
func (m *Machine) CanGoBack() bool {
	return m.current > 1 && !m.Done()
}

// Back moves one step backward.
func (m *Machine) Back() bool {
	if !m.CanGoBack() {
		return false
	}
	m.current--
	return true
}

// Finish enters the terminal step. Only the last data step can finish.
func (m *Machine) Finish() bool {
	if !m.OnLastDataStep() {
		return false
	}
	m.current = m.terminal()
	return true
}

// Reset returns to the gate.
func (m *Machine) Reset() { m.current = 0 }
