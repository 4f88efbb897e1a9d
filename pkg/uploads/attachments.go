package uploads

import (
	"errors"
	"fmt"
)

// Slot is one named attachment: at most one file and its live preview.
type Slot struct {
	Name    string
	File    File
	Preview Preview
}

// AttachmentManager tracks the files a session has staged, one per named
// slot, and owns their preview references.
type AttachmentManager struct {
	registry *PreviewRegistry
	names    []string
	slots    map[string]*Slot
}

// NewAttachmentManager creates a manager accepting only the given slots.
func NewAttachmentManager(registry *PreviewRegistry, slotNames ...string) *AttachmentManager {
	if registry == nil {
		registry = NewPreviewRegistry("")
	}
	return &AttachmentManager{
		registry: registry,
		names:    slotNames,
		slots:    make(map[string]*Slot, len(slotNames)),
	}
}

func (m *AttachmentManager) known(name string) bool {
	for _, n := range m.names {
		if n == name {
			return true
		}
	}
	return false
}

// Stage puts f into slot, replacing and releasing whatever was there.
func (m *AttachmentManager) Stage(slot string, f File) (Preview, error) {
	if !m.known(slot) {
		return Preview{}, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if f.IsZero() {
		return Preview{}, ErrEmptyFile
	}

	if err := m.Clear(slot); err != nil {
		return Preview{}, err
	}

	p := m.registry.Create(f)
	m.slots[slot] = &Slot{Name: slot, File: f, Preview: p}
	return p, nil
}

// Clear releases the slot's preview and drops its file. Clearing an empty
// slot is a no-op.
func (m *AttachmentManager) Clear(slot string) error {
	if !m.known(slot) {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	s, ok := m.slots[slot]
	if !ok {
		return nil
	}
	delete(m.slots, slot)
	return m.registry.Release(s.Preview.ID)
}

// Get returns the slot content.
func (m *AttachmentManager) Get(slot string) (Slot, bool) {
	s, ok := m.slots[slot]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// Has reports whether slot holds a file.
func (m *AttachmentManager) Has(slot string) bool {
	_, ok := m.slots[slot]
	return ok
}

// Slots returns the occupied slots in declaration order.
func (m *AttachmentManager) Slots() []Slot {
	out := make([]Slot, 0, len(m.slots))
	for _, name := range m.names {
		if s, ok := m.slots[name]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Names returns the accepted slot names.
func (m *AttachmentManager) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Close releases every preview. The manager is empty afterwards and can be
// reused.
func (m *AttachmentManager) Close() error {
	var errs []error
	for _, name := range m.names {
		if err := m.Clear(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
