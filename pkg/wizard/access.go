package wizard

import (
	"strings"
	"unicode"

	"github.com/greonxpert/console/pkg/api"
)

// CodeLength is the number of slots in an access code.
const CodeLength = 4

// MsgInvalidAccessCode is shown when the server gives no detail.
const MsgInvalidAccessCode = "Invalid access code"

// AccessCode is a fixed-length code entered one character per slot.
type AccessCode struct {
	slots [CodeLength]rune
	focus int
}

// Set writes s into slot i. Only the last character of s is kept, the way
// a one-character input replaces its content. An empty s clears the slot.
// Non-alphanumeric input and out-of-range slots are rejected.
func (c *AccessCode) Set(i int, s string) bool {
	if i < 0 || i >= CodeLength {
		return false
	}
	if s == "" {
		c.slots[i] = 0
		c.focus = i
		return true
	}

	r := []rune(s)
	last := r[len(r)-1]
	if !isCodeRune(last) {
		return false
	}
	c.slots[i] = last
	if i < CodeLength-1 {
		c.focus = i + 1
	} else {
		c.focus = i
	}
	return true
}

// Paste fills the slots from the start with the alphanumeric characters
// of s. It returns the number of slots written.
func (c *AccessCode) Paste(s string) int {
	n := 0
	for _, r := range s {
		if n == CodeLength {
			break
		}
		if !isCodeRune(r) {
			continue
		}
		c.slots[n] = r
		n++
	}
	if n > 0 {
		c.focus = min(n, CodeLength-1)
	}
	return n
}

// Slot returns the character in slot i, or "" when empty.
func (c *AccessCode) Slot(i int) string {
	if i < 0 || i >= CodeLength || c.slots[i] == 0 {
		return ""
	}
	return string(c.slots[i])
}

// IsComplete reports whether every slot is filled.
func (c *AccessCode) IsComplete() bool {
	for _, r := range c.slots {
		if r == 0 {
			return false
		}
	}
	return true
}

// String joins the filled slots.
func (c *AccessCode) String() string {
	var b strings.Builder
	for _, r := range c.slots {
		if r != 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clear empties every slot and moves focus to the first one.
func (c *AccessCode) Clear() {
	c.slots = [CodeLength]rune{}
	c.focus = 0
}

// Focus returns the slot that should hold input focus.
func (c *AccessCode) Focus() int { return c.focus }

func isCodeRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Gate checks an access code against the server once per completed code.
type Gate struct {
	Code AccessCode

	pending       bool
	authenticated bool
	access        api.AccessContext
}

// Begin returns the code to validate. It reports false, and nothing
// should be sent, when the code is incomplete, the gate is already open
// or a validation is in flight.
func (g *Gate) Begin() (string, bool) {
	if g.pending || g.authenticated || !g.Code.IsComplete() {
		return "", false
	}
	g.pending = true
	return g.Code.String(), true
}

// Complete records the outcome of the request started by Begin. On
// failure the code is cleared and the user-facing message is returned.
func (g *Gate) Complete(access api.AccessContext, err error) (string, bool) {
	g.pending = false
	if err != nil {
		g.Code.Clear()
		return api.UserMessage(err, MsgInvalidAccessCode), false
	}
	g.authenticated = true
	g.access = access
	return "", true
}

// Pending reports whether a validation is in flight.
func (g *Gate) Pending() bool { return g.pending }

// Authenticated reports whether the gate has been passed.
func (g *Gate) Authenticated() bool { return g.authenticated }

// Access returns what the server sent with a successful validation.
func (g *Gate) Access() api.AccessContext { return g.access }

// Reset closes the gate again.
func (g *Gate) Reset() {
	*g = Gate{}
}
