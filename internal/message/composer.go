// Package message builds the outbound chat message for an event.
package message

import (
	"context"
	"strings"

	"kanbot/internal/event"
)

// ParseModeMarkdown is the fixed formatting mode for outbound messages.
const ParseModeMarkdown = "Markdown"

// Message is the composed payload handed to the delivery gateway.
// It is built once per delivery attempt and immediately consumed.
type Message struct {
	ChatID    string
	Text      string
	ParseMode string
}

// Session exposes the identity of the actor behind the current event, when
// there is one. Batch-originated events (overdue digests) have none.
type Session interface {
	IsLogged() bool
	UserFullName() string
}

// Anonymous is the session of batch jobs: never logged in.
type Anonymous struct{}

func (Anonymous) IsLogged() bool       { return false }
func (Anonymous) UserFullName() string { return "" }

// Identity is a session with a fixed authenticated actor.
type Identity struct{ FullName string }

func (Identity) IsLogged() bool         { return true }
func (i Identity) UserFullName() string { return i.FullName }

// TitleFormatter maps an event to its human-readable title line.
type TitleFormatter interface {
	TitleWithAuthor(author string, name event.Name, data event.Data) string
	TitleWithoutAuthor(name event.Name, data event.Data) string
}

// LinkBuilder produces the absolute deep link to a task's detail view.
// ok is false when deep links are not configured.
type LinkBuilder interface {
	TaskURL(ctx context.Context, taskID, projectID int64) (url string, ok bool)
}

// Composer assembles the message text:
//
//	\[<project name>]
//	<title line>
//	<task title, linked when a base URL is configured>
//
// The leading backslash keeps the bracketed header literal under Markdown.
// Inputs are assumed well-formed by the caller; a nil task would be a caller
// contract violation upstream of this package.
type Composer struct {
	session Session
	titles  TitleFormatter
	links   LinkBuilder
}

func NewComposer(session Session, titles TitleFormatter, links LinkBuilder) *Composer {
	if session == nil {
		session = Anonymous{}
	}
	return &Composer{session: session, titles: titles, links: links}
}

// Compose builds the outbound message for one event view.
func (c *Composer) Compose(ctx context.Context, chatID string, project event.Project, name event.Name, data event.Data) Message {
	var title string
	if c.session.IsLogged() {
		title = c.titles.TitleWithAuthor(c.session.UserFullName(), name, data)
	} else {
		title = c.titles.TitleWithoutAuthor(name, data)
	}

	projectName := data.ProjectName
	if projectName == "" && data.Task != nil {
		projectName = data.Task.ProjectName
	}

	var b strings.Builder
	b.WriteString("\\[")
	b.WriteString(projectName)
	b.WriteString("]\n")
	b.WriteString(title)
	b.WriteString("\n")

	if url, ok := c.links.TaskURL(ctx, data.Task.ID, project.ID); ok {
		b.WriteString("[")
		b.WriteString(data.Task.Title)
		b.WriteString("](")
		b.WriteString(url)
		b.WriteString(")")
	} else {
		b.WriteString(data.Task.Title)
	}

	return Message{ChatID: chatID, Text: b.String(), ParseMode: ParseModeMarkdown}
}
