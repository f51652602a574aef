// Package task runs closures one at a time on a document's content thread.
package task

import (
	"errors"
	"sync"
)

// ErrDropped reports a task that was cleared from its queue, or scheduled
// on a runner that had quit, before it could run.
var ErrDropped = errors.New("task dropped before running")

type Task struct {
	name     string
	code     func()
	onCancel func()
	once     sync.Once
}

func NewTask(name string, code func()) *Task {
	return &Task{
		name: name,
		code: code,
	}
}

// OnCancel sets fn to be called instead of the task's code if the task is
// dropped. It must be set before the task is scheduled.
func (t *Task) OnCancel(fn func()) *Task {
	t.onCancel = fn
	return t
}

func (t *Task) Name() string {
	return t.name
}

// Run executes the task once. Later calls, and calls after Cancel, do
// nothing.
func (t *Task) Run() {
	t.once.Do(func() {
		if t.code != nil {
			t.code()
		}
	})
}

// Cancel marks the task as dropped. The cancel hook runs unless the task
// already ran.
func (t *Task) Cancel() {
	t.once.Do(func() {
		if t.onCancel != nil {
			t.onCancel()
		}
	})
}
