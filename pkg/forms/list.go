package forms

import "strings"

// List is a list-valued field (tags, speakers, included items). Values are
// unique, compared case-sensitively after trimming.
type List struct {
	items []string
}

// NewList creates a list from values, dropping blanks and duplicates.
func NewList(values ...string) *List {
	l := &List{}
	for _, v := range values {
		l.Add(v)
	}
	return l
}

// Add appends value. Empty and already-present values are a no-op and
// report false.
func (l *List) Add(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || l.Contains(value) {
		return false
	}
	l.items = append(l.items, value)
	return true
}

// Commit handles a keystroke-style commit: input ending in a comma adds the
// text before it. It returns the text that should remain in the input box.
func (l *List) Commit(input string) (rest string, added bool) {
	if !strings.HasSuffix(input, ",") {
		return input, false
	}
	l.Add(strings.TrimSuffix(input, ","))
	return "", true
}

// RemoveAt removes the value at index i. Out-of-range indexes are a no-op.
func (l *List) RemoveAt(i int) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	return true
}

// Contains reports whether value is present.
func (l *List) Contains(value string) bool {
	for _, item := range l.items {
		if item == value {
			return true
		}
	}
	return false
}

// Items returns a copy of the values in insertion order.
func (l *List) Items() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of values.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Reset removes every value.
func (l *List) Reset() {
	l.items = nil
}
