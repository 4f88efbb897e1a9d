// Package core provides the component runtime shared by the console's wizards.
//
// A component is a stateful object driven by two kinds of input: events
// (user interactions) and infos (results of background work it started).
// Both are delivered one at a time, on one goroutine, by a Loop or by a
// front end that honours the same contract.
package core

import (
	"context"
)

// Component is a screen driven by a Loop or a front end.
type Component interface {
	Name() string

	// Mount runs once, before the first event.
	Mount(ctx context.Context, params Params, session Session) error

	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo receives the value returned by a spawned Task.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate runs once. Infos delivered after it are dropped.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Params are launch parameters, e.g. the link token of a wizard URL.
type Params map[string]string

// Get returns params[key], or "".
func (p Params) Get(key string) string { return p[key] }

// Session is host data handed to Mount.
type Session map[string]any

// TerminateReason says why a component stopped.
type TerminateReason int

const (
	// TerminateNormal: the user or host closed the component.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown: the process is exiting.
	TerminateShutdown
)

func (r TerminateReason) String() string {
	if r == TerminateShutdown {
		return "shutdown"
	}
	return "normal"
}

// PayloadString returns payload[key] if it holds a string.
func PayloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// PayloadInt returns payload[key] as an int, or -1 when it is missing or
// not numeric. Decoded JSON carries numbers as float64.
func PayloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return -1
}
