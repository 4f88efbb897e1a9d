package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachine_Transitions(t *testing.T) {
	m := NewMachine(ContentSteps...)

	assert.True(t, m.AtGate())
	assert.False(t, m.Advance(true), "gate opens only through Unlock")
	assert.False(t, m.CanGoBack())
	assert.False(t, m.Finish())

	assert.True(t, m.Unlock())
	assert.False(t, m.Unlock())
	assert.Equal(t, StepCategory, m.Current())
	assert.False(t, m.CanGoBack())

	assert.False(t, m.Advance(false))
	assert.Equal(t, StepCategory, m.Current())

	assert.True(t, m.Advance(true))
	assert.True(t, m.Advance(true))
	assert.Equal(t, StepFinal, m.Current())
	assert.True(t, m.OnLastDataStep())
	assert.False(t, m.Advance(true), "the terminal step is reached only by Finish")

	assert.True(t, m.Back())
	assert.Equal(t, StepDetails, m.Current())
	m.Advance(true)

	assert.True(t, m.Finish())
	assert.True(t, m.Done())
	assert.Equal(t, "complete", m.Name())
	assert.False(t, m.Back())
	assert.False(t, m.Advance(true))

	m.Reset()
	assert.True(t, m.AtGate())
}

func TestMachine_StepName(t *testing.T) {
	m := NewMachine(TestimonialSteps...)
	assert.Equal(t, "testimonial", m.StepName(StepQuote))
	assert.Empty(t, m.StepName(Step(9)))
	assert.Equal(t, 4, m.Len())
}

func TestMachine_TooShortPanics(t *testing.T) {
	assert.Panics(t, func() { NewMachine("gate", "complete") })
}

func TestAccessCode_Set(t *testing.T) {
	var c AccessCode

	assert.True(t, c.Set(0, "7"))
	assert.Equal(t, 1, c.Focus())
	assert.True(t, c.Set(1, "ab"), "only the last character is kept")
	assert.Equal(t, "b", c.Slot(1))
	assert.False(t, c.Set(2, "#"))
	assert.False(t, c.Set(4, "1"))
	assert.True(t, c.Set(2, "c"))
	assert.False(t, c.IsComplete())
	assert.True(t, c.Set(3, "d"))
	assert.Equal(t, 3, c.Focus())
	assert.True(t, c.IsComplete())
	assert.Equal(t, "7bcd", c.String())

	assert.True(t, c.Set(1, ""))
	assert.False(t, c.IsComplete())
	assert.Equal(t, 1, c.Focus())
}

func TestAccessCode_Paste(t *testing.T) {
	var c AccessCode

	assert.Equal(t, 2, c.Paste(" 1-2 "))
	assert.Equal(t, 2, c.Focus())
	assert.Equal(t, CodeLength, c.Paste("123456"))
	assert.Equal(t, "1234", c.String())

	c.Clear()
	assert.Empty(t, c.String())
	assert.Zero(t, c.Focus())
}

func TestGate_BeginRequiresCompleteCode(t *testing.T) {
	var g Gate

	_, ok := g.Begin()
	assert.False(t, ok)

	g.Code.Paste("1234")
	code, ok := g.Begin()
	assert.True(t, ok)
	assert.Equal(t, "1234", code)
	assert.True(t, g.Pending())

	_, ok = g.Begin()
	assert.False(t, ok)

	_, ok = g.Complete(g.Access(), nil)
	assert.True(t, ok)
	assert.True(t, g.Authenticated())

	_, ok = g.Begin()
	assert.False(t, ok, "an open gate is not revalidated")
}
