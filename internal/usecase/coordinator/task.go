package coordinator

import (
	"github.com/storeway/catsync/internal/domain"
)

// taskState tracks a unit of feed work through its lifecycle. The scheduler
// owns every transition; tasks never mutate themselves concurrently because
// exactly one worker holds a task at a time.
type taskState string

const (
	taskPending    taskState = "pending"
	taskInFlight   taskState = "in-flight"
	taskRetrying   taskState = "retrying"
	taskDeadLetter taskState = "dead-lettered"
	taskDone       taskState = "done"
)

// task is one change event in flight through the pipeline.
type task struct {
	event    domain.ChangeEvent
	state    taskState
	attempts int
	err      error

	// retryable marks a dead-lettered task whose failure was transient:
	// the cursor must not advance past it so the next cycle re-delivers
	// the event. Poison input (validation failures) is not retryable and
	// the cursor moves on.
	retryable bool
}

// settled reports whether the cursor may advance past this task.
func (t *task) settled() bool {
	if t.state == taskDone {
		return true
	}
	return t.state == taskDeadLetter && !t.retryable
}
