package message

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// KeyApplicationURL is the global setting holding the deep-link base URL.
// When unset, messages carry the task title as plain text.
const KeyApplicationURL = "application_url"

// BaseURLSource reads a global setting. A missing key yields ("", nil).
type BaseURLSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// AppLinks builds task detail URLs from the application_url setting.
//
// The base URL is re-read on every call on purpose: the host may change it
// at any time and link building is not on a hot path.
type AppLinks struct {
	settings BaseURLSource
}

func NewAppLinks(settings BaseURLSource) *AppLinks {
	return &AppLinks{settings: settings}
}

func (l *AppLinks) TaskURL(ctx context.Context, taskID, projectID int64) (string, bool) {
	if l.settings == nil {
		return "", false
	}
	base, err := l.settings.Get(ctx, KeyApplicationURL)
	if err != nil || strings.TrimSpace(base) == "" {
		return "", false
	}

	base = strings.TrimRight(strings.TrimSpace(base), "/") + "/"
	q := url.Values{}
	q.Set("controller", "TaskViewController")
	q.Set("action", "show")
	q.Set("task_id", fmt.Sprintf("%d", taskID))
	q.Set("project_id", fmt.Sprintf("%d", projectID))
	return base + "?" + q.Encode(), true
}
