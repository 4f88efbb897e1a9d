package core

import (
	"context"
)

// Task is background work started by a component. It runs off the
// component's goroutine; its return value is delivered back via HandleInfo.
type Task func(ctx context.Context) any

// Spawner runs tasks on behalf of a component.
type Spawner interface {
	Spawn(name string, task Task)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(name string, task Task)

func (f SpawnerFunc) Spawn(name string, task Task) { f(name, task) }

type contextKey string

const (
	spawnerKey contextKey = "greonxpert:spawner"
	flashKey   contextKey = "greonxpert:flash"
)

// WithSpawner adds a spawner to the context.
func WithSpawner(ctx context.Context, s Spawner) context.Context {
	return context.WithValue(ctx, spawnerKey, s)
}

// SpawnerFromContext retrieves the spawner from context.
func SpawnerFromContext(ctx context.Context) Spawner {
	s, _ := ctx.Value(spawnerKey).(Spawner)
	return s
}

// Spawn starts task through the spawner in ctx. It reports false when the
// context carries no spawner, in which case the task never runs.
func Spawn(ctx context.Context, name string, task Task) bool {
	s := SpawnerFromContext(ctx)
	if s == nil {
		return false
	}
	s.Spawn(name, task)
	return true
}

// WithFlashes adds a banner set to the context.
func WithFlashes(ctx context.Context, f *Flashes) context.Context {
	return context.WithValue(ctx, flashKey, f)
}

// FlashesFromContext retrieves the banner set from context.
func FlashesFromContext(ctx context.Context) *Flashes {
	f, _ := ctx.Value(flashKey).(*Flashes)
	return f
}
