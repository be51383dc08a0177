// Package audit records who changed what. It has two parts: the audit
// columns embedded in bookmark and tag rows (Fields, stamped explicitly on
// every write), and an append-only activity log of user actions that backs
// GET /api/activity.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb" for consistent
// filtering and display grouping.

const (
	ActionBookmarkCreated     = "bookmark.created"
	ActionBookmarkUpdated     = "bookmark.updated"
	ActionBookmarkDeleted     = "bookmark.deleted"
	ActionBookmarksDeletedAll = "bookmark.deleted_all"
	ActionBookmarkTagged      = "bookmark.tagged"
	ActionBookmarkUntagged    = "bookmark.untagged"
	ActionTagCreated          = "tag.created"
	ActionTagDeleted          = "tag.deleted"
)

// Resource types stored in audit_log.resource_type.
const (
	ResourceBookmark = "bookmark"
	ResourceTag      = "tag"
)

// Entry represents a single recorded action in the activity log. The
// Details map holds action-specific metadata (e.g. the tag title attached).
type Entry struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"userId"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   int64          `json:"resourceId"`
	ResourceName string         `json:"resourceName,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Page is one page of the activity feed.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"perPage"`
}
