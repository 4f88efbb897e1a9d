package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestSequenceRunsInOrder(t *testing.T) {
	s := New(time.Second, nil)
	var order []string
	s.Add("hub", func(context.Context) error { order = append(order, "hub"); return nil })
	s.Add("http", func(context.Context) error { order = append(order, "http"); return nil })
	s.AddCloser("pubsub", closerFunc(func() error { order = append(order, "pubsub"); return nil }))

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"hub", "http", "pubsub"}, order)
}

func TestSequenceContinuesAfterFailure(t *testing.T) {
	s := New(time.Second, nil)
	boom := errors.New("boom")
	ran := false
	s.Add("first", func(context.Context) error { return boom })
	s.Add("second", func(context.Context) error { ran = true; return nil })

	err := s.Run()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first: boom")
	assert.True(t, ran)
}

func TestSequenceRunsOnce(t *testing.T) {
	s := New(time.Second, nil)
	calls := 0
	s.Add("count", func(context.Context) error { calls++; return errors.New("once") })

	first := s.Run()
	second := s.Run()
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestSequenceDeadline(t *testing.T) {
	s := New(20*time.Millisecond, nil)
	skipped := true
	s.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	s.Add("late", func(context.Context) error { skipped = false; return nil })

	err := s.Run()
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, skipped)
}
