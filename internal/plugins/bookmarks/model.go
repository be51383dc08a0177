// Package bookmarks implements the bookmark store and tag search. A bookmark
// is owned by exactly one user and carries any number of that user's tags.
// Tag search returns the caller's bookmarks carrying at least one of the
// requested tags, each once, ordered by id.
package bookmarks

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/audit"
	"github.com/keyxmakerx/findfirst/internal/plugins/tags"
)

// Field limits.
const (
	MaxTitleLength       = 255
	MaxURLLength         = 2048
	MaxDescriptionLength = 4000

	// MaxSearchTags caps the number of distinct tags in one search request.
	MaxSearchTags = 50

	// MaxTitleKeywords caps the number of distinct keywords in one title
	// search; MaxKeywordLength caps each keyword.
	MaxTitleKeywords = 20
	MaxKeywordLength = 100
)

// Bookmark is a saved URL owned by one user.
type Bookmark struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"-"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Tags        []tags.Tag `json:"tags"`
	audit.Fields
}

// SearchRequest asks for the caller's bookmarks carrying any of Tags. Tag
// titles are normalized the way tags are stored (markup stripped,
// surrounding whitespace trimmed) and then matched exactly and
// case-sensitively.
type SearchRequest struct {
	Tags []string `json:"tags" query:"tags"`
}

// Validate rejects requests that cannot be answered: no tags, a tag that is
// blank or too long once normalized, or more than MaxSearchTags distinct
// tags.
func (r SearchRequest) Validate() error {
	_, err := r.normalize()
	return err
}

// Normalized returns the normalized tags with duplicates removed, keeping
// the first occurrence of each. Tags that fail validation are dropped.
func (r SearchRequest) Normalized() []string {
	out, _ := r.normalize()
	return out
}

func (r SearchRequest) normalize() ([]string, error) {
	if len(r.Tags) == 0 {
		return []string{}, apperror.NewValidation("at least one tag is required")
	}

	out := make([]string, 0, len(r.Tags))
	seen := make(map[string]bool, len(r.Tags))
	var firstErr error
	for _, raw := range r.Tags {
		title, err := tags.NormalizeTitle(raw)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !seen[title] {
			seen[title] = true
			out = append(out, title)
		}
	}

	if firstErr != nil {
		return out, firstErr
	}
	if len(out) > MaxSearchTags {
		return out, apperror.NewValidation(fmt.Sprintf("at most %d distinct tags per search", MaxSearchTags))
	}
	return out, nil
}

// Equal reports whether two requests ask for the same tag sequence. Order
// and repetition are significant.
func (r SearchRequest) Equal(other SearchRequest) bool {
	return slices.Equal(r.Tags, other.Tags)
}

// ParseKeywords splits raw title-search input on commas and whitespace, as
// in "go,postgres" or "go postgres", and drops repeats ignoring case.
func ParseKeywords(raw ...string) ([]string, error) {
	out := []string{}
	seen := make(map[string]bool)
	for _, r := range raw {
		for _, kw := range strings.FieldsFunc(r, func(c rune) bool {
			return c == ',' || unicode.IsSpace(c)
		}) {
			if utf8.RuneCountInString(kw) > MaxKeywordLength {
				return nil, apperror.NewValidation(fmt.Sprintf("keywords must be at most %d characters", MaxKeywordLength))
			}
			key := strings.ToLower(kw)
			if !seen[key] {
				seen[key] = true
				out = append(out, kw)
			}
		}
	}

	if len(out) == 0 {
		return nil, apperror.NewValidation("at least one keyword is required")
	}
	if len(out) > MaxTitleKeywords {
		return nil, apperror.NewValidation(fmt.Sprintf("at most %d distinct keywords per search", MaxTitleKeywords))
	}
	return out, nil
}

// --- Request DTOs (bound from HTTP requests) ---

// CreateBookmarkRequest holds the body of POST /api/bookmark.
type CreateBookmarkRequest struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	TagIDs      []int64 `json:"tagIds"`
}

// UpdateBookmarkRequest holds the body of PUT /api/bookmark/:id.
type UpdateBookmarkRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// --- Service Input DTOs ---

// CreateInput is the input for creating a bookmark.
type CreateInput struct {
	Title       string
	URL         string
	Description string
	TagIDs      []int64
}

// UpdateInput replaces a bookmark's editable fields.
type UpdateInput struct {
	Title       string
	URL         string
	Description string
}
