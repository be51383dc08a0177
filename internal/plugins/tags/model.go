// Package tags implements per-user tags. A tag is a case-sensitive label
// owned by one user; (owner, title) is unique. Tags attach to bookmarks
// through the bookmark_tag join table and are what tag search matches on.
package tags

import (
	"github.com/keyxmakerx/findfirst/internal/plugins/audit"
)

// MaxTitleLength is the longest tag title accepted, in characters.
const MaxTitleLength = 100

// Tag represents a label owned by a single user.
type Tag struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"-"`
	Title   string `json:"title"`
	audit.Fields
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateTagRequest holds the body of POST /api/tag.
type CreateTagRequest struct {
	Title string `json:"title"`
}

// CreateTagsRequest holds the body of POST /api/tags.
type CreateTagsRequest struct {
	Titles []string `json:"titles"`
}
