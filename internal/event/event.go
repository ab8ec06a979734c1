// Package event defines the project-management occurrences the dispatcher
// reacts to and the payload shapes they carry.
//
// Two payload shapes exist:
//   - every kind except TaskOverdue embeds exactly one task record (Task),
//   - TaskOverdue carries a batch of task records (Tasks) addressed to a
//     single user's personal feed.
//
// WithTask projects a batched payload into a singular-shaped view so the
// rest of the pipeline only ever formats one task at a time.
package event

// Name enumerates the event kinds emitted by the host.
type Name string

const (
	TaskCreate         Name = "task.create"
	TaskUpdate         Name = "task.update"
	TaskClose          Name = "task.close"
	TaskOpen           Name = "task.open"
	TaskMoveColumn     Name = "task.move.column"
	TaskMovePosition   Name = "task.move.position"
	TaskAssigneeChange Name = "task.assignee_change"
	TaskOverdue        Name = "task.overdue"
)

// Task is the task record embedded in event payloads.
type Task struct {
	ID          int64
	Title       string
	ProjectID   int64
	ProjectName string
	OwnerID     int64
}

// Project identifies a project-level notification target.
type Project struct {
	ID   int64
	Name string
}

// User identifies a user-level notification target.
type User struct {
	ID       int64
	Name     string
	Username string
}

// Data is the payload attached to an event.
//
// For singular kinds Task is set. For TaskOverdue, Tasks holds the batch and
// Task is nil until the payload is projected with WithTask.
type Data struct {
	ProjectName string
	Task        *Task
	Tasks       []Task
}

// WithTask returns a copy of the payload with Task pointing at t.
// The batch is kept as-is so a projected view stays a superset of the
// original payload.
func (d Data) WithTask(t Task) Data {
	d.Task = &t
	return d
}

// Batched reports whether the kind fans out into per-task deliveries.
func (n Name) Batched() bool { return n == TaskOverdue }
