package message

import (
	"fmt"

	"kanbot/internal/event"
)

// EventTitles is the default TitleFormatter. Phrasing follows the host
// application's notification wording, one phrase pair per event kind.
type EventTitles struct{}

func (EventTitles) TitleWithAuthor(author string, name event.Name, data event.Data) string {
	id := taskID(data)
	switch name {
	case event.TaskCreate:
		return fmt.Sprintf("%s created the task #%d", author, id)
	case event.TaskUpdate:
		return fmt.Sprintf("%s updated the task #%d", author, id)
	case event.TaskClose:
		return fmt.Sprintf("%s closed the task #%d", author, id)
	case event.TaskOpen:
		return fmt.Sprintf("%s opened the task #%d", author, id)
	case event.TaskMoveColumn, event.TaskMovePosition:
		return fmt.Sprintf("%s moved the task #%d", author, id)
	case event.TaskAssigneeChange:
		return fmt.Sprintf("%s changed the assignee of the task #%d", author, id)
	case event.TaskOverdue:
		return fmt.Sprintf("Task #%d is overdue", id)
	default:
		return fmt.Sprintf("%s triggered %s on the task #%d", author, name, id)
	}
}

func (EventTitles) TitleWithoutAuthor(name event.Name, data event.Data) string {
	id := taskID(data)
	switch name {
	case event.TaskCreate:
		return fmt.Sprintf("New task #%d", id)
	case event.TaskUpdate:
		return fmt.Sprintf("Task #%d updated", id)
	case event.TaskClose:
		return fmt.Sprintf("Task #%d closed", id)
	case event.TaskOpen:
		return fmt.Sprintf("Task #%d opened", id)
	case event.TaskMoveColumn, event.TaskMovePosition:
		return fmt.Sprintf("Task #%d moved", id)
	case event.TaskAssigneeChange:
		return fmt.Sprintf("Assignee changed on task #%d", id)
	case event.TaskOverdue:
		return fmt.Sprintf("Task #%d is overdue", id)
	default:
		return fmt.Sprintf("Task #%d: %s", id, name)
	}
}

func taskID(data event.Data) int64 {
	if data.Task == nil {
		return 0
	}
	return data.Task.ID
}
