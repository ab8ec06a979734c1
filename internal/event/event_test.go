package event

import "testing"

func TestWithTaskKeepsBatchAndPayload(t *testing.T) {
	t.Parallel()
	batch := Data{
		ProjectName: "Ops",
		Tasks: []Task{
			{ID: 1, ProjectID: 9},
			{ID: 2, ProjectID: 10},
		},
	}

	view := batch.WithTask(batch.Tasks[1])
	if view.Task == nil || view.Task.ID != 2 {
		t.Fatalf("Task = %+v, want task 2", view.Task)
	}
	if view.ProjectName != "Ops" {
		t.Fatalf("ProjectName = %q, want Ops", view.ProjectName)
	}
	if len(view.Tasks) != 2 {
		t.Fatalf("Tasks = %d entries, want batch preserved", len(view.Tasks))
	}
	// the original payload is untouched
	if batch.Task != nil {
		t.Fatal("WithTask must not mutate the receiver")
	}
}

func TestBatchedKinds(t *testing.T) {
	t.Parallel()
	if !TaskOverdue.Batched() {
		t.Fatal("task.overdue must fan out")
	}
	for _, n := range []Name{TaskCreate, TaskUpdate, TaskClose, TaskOpen, TaskMoveColumn, TaskMovePosition, TaskAssigneeChange} {
		if n.Batched() {
			t.Fatalf("%s must not fan out", n)
		}
	}
}
