package task

import (
	"sync"

	"go.uber.org/zap"
)

// Runner is a single-threaded work queue. Everything that touches a
// document's nodes goes through one Runner, so DOM mutation, style and
// layout never interleave.
type Runner struct {
	log       *zap.Logger
	tasks     []*Task
	condition *sync.Cond
	needsQuit bool
	done      chan struct{}
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:       log.Named("tasks"),
		tasks:     make([]*Task, 0),
		condition: sync.NewCond(&sync.Mutex{}),
		done:      make(chan struct{}),
	}
}

// ScheduleTask queues t. A runner that was told to quit cancels t instead.
func (r *Runner) ScheduleTask(t *Task) {
	r.condition.L.Lock()
	if r.needsQuit {
		r.condition.L.Unlock()
		t.Cancel()
		return
	}
	r.tasks = append(r.tasks, t)
	r.condition.Broadcast()
	r.condition.L.Unlock()
}

// ClearPendingTasks cancels queued tasks that have not started yet.
func (r *Runner) ClearPendingTasks() {
	r.condition.L.Lock()
	dropped := r.tasks
	r.tasks = make([]*Task, 0)
	r.condition.L.Unlock()
	cancelAll(r.log, dropped)
}

func cancelAll(log *zap.Logger, tasks []*Task) {
	for _, t := range tasks {
		log.Debug("Dropping task", zap.String("task", t.Name()))
		t.Cancel()
	}
}

func (r *Runner) Pending() int {
	r.condition.L.Lock()
	defer r.condition.L.Unlock()
	return len(r.tasks)
}

// Run processes tasks until SetNeedsQuit. Tasks still queued at quit time
// are cancelled.
func (r *Runner) Run() {
	defer close(r.done)
	for {
		r.condition.L.Lock()
		for len(r.tasks) == 0 && !r.needsQuit {
			r.condition.Wait()
		}
		if r.needsQuit {
			dropped := r.tasks
			r.tasks = nil
			r.condition.L.Unlock()
			cancelAll(r.log, dropped)
			return
		}
		t := r.tasks[0]
		r.tasks = r.tasks[1:]
		r.condition.L.Unlock()

		r.log.Debug("Running task", zap.String("task", t.Name()))
		t.Run()
	}
}

func (r *Runner) StartThread() {
	go r.Run()
}

func (r *Runner) SetNeedsQuit() {
	r.condition.L.Lock()
	r.needsQuit = true
	r.condition.Broadcast()
	r.condition.L.Unlock()
}

// Wait blocks until a started Run loop has returned.
func (r *Runner) Wait() {
	<-r.done
}
