package backend

import (
	"context"
	"errors"
)

// ErrDispatch is returned when a backend cannot accept a unit of work.
var ErrDispatch = errors.New("backend dispatch failed")

// ErrClosed is returned when work is submitted to a backend that has been closed.
var ErrClosed = errors.New("backend closed")

// Task is a unit of work executed by a backend. The returned value becomes the
// result of the Future handed back by Submit.
type Task func(ctx context.Context) (any, error)

// Backend is the interface that all calculation backends must implement.
// A backend may run many tasks concurrently; each submission returns a Future
// that resolves when the task finishes.
type Backend interface {
	// Submit queues a task for execution. A non-nil error wraps ErrDispatch
	// and means the task will never run. The context bounds only the
	// submission itself, not the task's execution.
	Submit(ctx context.Context, task Task) (*Future, error)

	// Capabilities reports the backend's name and concurrency limits.
	Capabilities() Capabilities

	// Close stops accepting work and waits for in-flight tasks to finish.
	Close() error
}

// Capabilities describes what a backend supports.
type Capabilities struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
}
