package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestRunnerExecutesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRunner(nil)
	r.StartThread()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		r.ScheduleTask(NewTask("append", func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	r.SetNeedsQuit()
	r.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestClearPendingTasks(t *testing.T) {
	r := NewRunner(nil)
	ran, cancelled := false, false
	r.ScheduleTask(NewTask("never", func() { ran = true }).OnCancel(func() { cancelled = true }))
	assert.Equal(t, 1, r.Pending())
	r.ClearPendingTasks()
	assert.Equal(t, 0, r.Pending())
	assert.True(t, cancelled, "dropped tasks are told so")

	r.SetNeedsQuit()
	r.Run()
	assert.False(t, ran)
}

func TestQuitCancelsQueuedAndLateTasks(t *testing.T) {
	r := NewRunner(nil)
	var cancelled []string
	cancel := func(name string) func() {
		return func() { cancelled = append(cancelled, name) }
	}
	r.ScheduleTask(NewTask("queued", func() { t.Error("queued task ran") }).OnCancel(cancel("queued")))
	r.SetNeedsQuit()
	r.Run()
	r.Wait()

	r.ScheduleTask(NewTask("late", func() { t.Error("late task ran") }).OnCancel(cancel("late")))
	assert.Equal(t, []string{"queued", "late"}, cancelled)
	assert.Zero(t, r.Pending())
}

func TestCancelAfterRunIsNoop(t *testing.T) {
	count, cancelled := 0, false
	tsk := NewTask("once", func() { count++ }).OnCancel(func() { cancelled = true })
	tsk.Run()
	tsk.Cancel()
	tsk.Run()
	assert.Equal(t, 1, count)
	assert.False(t, cancelled)
}

func TestTaskRunsOnce(t *testing.T) {
	count := 0
	tsk := NewTask("count", func() { count++ })
	tsk.Run()
	tsk.Run()
	assert.Equal(t, 1, count)
	assert.Equal(t, "count", tsk.Name())
}
