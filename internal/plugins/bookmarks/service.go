package bookmarks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/observability"
	"github.com/keyxmakerx/findfirst/internal/plugins/audit"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
	"github.com/keyxmakerx/findfirst/internal/plugins/tags"
	"github.com/keyxmakerx/findfirst/internal/sanitize"
)

// BookmarkService defines the business logic contract for bookmarks. Every
// method takes the caller's principal explicitly; a nil principal is
// rejected before any storage is touched.
type BookmarkService interface {
	List(ctx context.Context, p *auth.Principal) ([]Bookmark, error)
	Get(ctx context.Context, p *auth.Principal, id int64) (*Bookmark, error)
	Create(ctx context.Context, p *auth.Principal, input CreateInput) (*Bookmark, error)
	Update(ctx context.Context, p *auth.Principal, id int64, input UpdateInput) (*Bookmark, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
	DeleteAll(ctx context.Context, p *auth.Principal) (int64, error)

	// AddTag attaches the caller's tag with this title, creating it first
	// if needed, and returns the tag.
	AddTag(ctx context.Context, p *auth.Principal, id int64, title string) (*tags.Tag, error)
	RemoveTag(ctx context.Context, p *auth.Principal, id, tagID int64) error

	// Search returns the caller's bookmarks that carry at least one of the
	// requested tags. Each bookmark appears once; results are ordered by id.
	Search(ctx context.Context, p *auth.Principal, req SearchRequest) ([]Bookmark, error)

	// SearchByTitle returns the caller's bookmarks whose title contains any
	// of the keywords, ignoring case, ordered by id.
	SearchByTitle(ctx context.Context, p *auth.Principal, keywords []string) ([]Bookmark, error)
}

// bookmarkService implements BookmarkService.
type bookmarkService struct {
	repo     BookmarkRepository
	tags     tags.TagService
	recorder audit.Recorder
	now      func() time.Time
}

// NewBookmarkService creates a new bookmark service.
func NewBookmarkService(repo BookmarkRepository, tagSvc tags.TagService, recorder audit.Recorder) BookmarkService {
	return &bookmarkService{repo: repo, tags: tagSvc, recorder: recorder, now: time.Now}
}

// List returns all of the caller's bookmarks with their tags.
func (s *bookmarkService) List(ctx context.Context, p *auth.Principal) ([]Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}

	bookmarks, err := s.repo.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}
	if err := s.attachTags(ctx, bookmarks); err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// Get returns one of the caller's bookmarks. A bookmark owned by someone
// else is indistinguishable from a missing one.
func (s *bookmarkService) Get(ctx context.Context, p *auth.Principal, id int64) (*Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}

	b, err := s.repo.FindByID(ctx, p.UserID, id)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}

	one := []Bookmark{*b}
	if err := s.attachTags(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// Create validates the input, stamps audit fields, and persists the
// bookmark together with its tag links.
func (s *bookmarkService) Create(ctx context.Context, p *auth.Principal, input CreateInput) (*Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}

	title, link, description, err := validateFields(input.Title, input.URL, input.Description)
	if err != nil {
		return nil, err
	}
	if err := s.tags.ValidateOwnership(ctx, p, input.TagIDs); err != nil {
		return nil, err
	}

	b := &Bookmark{
		OwnerID:     p.UserID,
		Title:       title,
		URL:         link,
		Description: description,
	}
	audit.StampCreate(&b.Fields, p, s.now())

	if err := s.repo.Create(ctx, b, dedupeIDs(input.TagIDs)); err != nil {
		return nil, apperror.FromStorage(err)
	}

	slog.Info("bookmark created",
		slog.Int64("user_id", p.UserID),
		slog.Int64("bookmark_id", b.ID),
	)
	s.recorder.Record(ctx, p, audit.ActionBookmarkCreated, audit.ResourceBookmark, b.ID, b.Title, nil)

	return s.Get(ctx, p, b.ID)
}

// Update replaces a bookmark's title, URL and description.
func (s *bookmarkService) Update(ctx context.Context, p *auth.Principal, id int64, input UpdateInput) (*Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}

	title, link, description, err := validateFields(input.Title, input.URL, input.Description)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.FindByID(ctx, p.UserID, id)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}

	b.Title = title
	b.URL = link
	b.Description = description
	audit.StampUpdate(&b.Fields, p, s.now())

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, apperror.FromStorage(err)
	}

	s.recorder.Record(ctx, p, audit.ActionBookmarkUpdated, audit.ResourceBookmark, b.ID, b.Title, nil)
	return s.Get(ctx, p, id)
}

// Delete removes one of the caller's bookmarks.
func (s *bookmarkService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if p == nil {
		return auth.ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, p.UserID, id); err != nil {
		return apperror.FromStorage(err)
	}

	s.recorder.Record(ctx, p, audit.ActionBookmarkDeleted, audit.ResourceBookmark, id, "", nil)
	return nil
}

// DeleteAll removes every bookmark the caller owns.
func (s *bookmarkService) DeleteAll(ctx context.Context, p *auth.Principal) (int64, error) {
	if p == nil {
		return 0, auth.ErrUnauthenticated
	}
	n, err := s.repo.DeleteAllByOwner(ctx, p.UserID)
	if err != nil {
		return 0, apperror.FromStorage(err)
	}

	slog.Info("bookmarks deleted",
		slog.Int64("user_id", p.UserID),
		slog.Int64("count", n),
	)
	s.recorder.Record(ctx, p, audit.ActionBookmarksDeletedAll, audit.ResourceBookmark, 0, "",
		map[string]any{"count": n})
	return n, nil
}

// AddTag resolves the title to one of the caller's tags and links it.
func (s *bookmarkService) AddTag(ctx context.Context, p *auth.Principal, id int64, title string) (*tags.Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	if _, err := s.repo.FindByID(ctx, p.UserID, id); err != nil {
		return nil, apperror.FromStorage(err)
	}

	tag, err := s.tags.GetOrCreate(ctx, p, title)
	if err != nil {
		return nil, err
	}
	if err := s.tags.Attach(ctx, id, tag.ID); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, p, audit.ActionBookmarkTagged, audit.ResourceBookmark, id, "",
		map[string]any{"tag": tag.Title, "tagId": tag.ID})
	return tag, nil
}

// RemoveTag unlinks a tag from one of the caller's bookmarks.
func (s *bookmarkService) RemoveTag(ctx context.Context, p *auth.Principal, id, tagID int64) error {
	if p == nil {
		return auth.ErrUnauthenticated
	}
	if _, err := s.repo.FindByID(ctx, p.UserID, id); err != nil {
		return apperror.FromStorage(err)
	}
	if err := s.tags.Detach(ctx, id, tagID); err != nil {
		return err
	}

	s.recorder.Record(ctx, p, audit.ActionBookmarkUntagged, audit.ResourceBookmark, id, "",
		map[string]any{"tagId": tagID})
	return nil
}

// Search runs a tag search for the caller. The result is filtered to the
// caller's bookmarks, de-duplicated and sorted by id here as well, so these
// properties hold whatever the repository returns.
func (s *bookmarkService) Search(ctx context.Context, p *auth.Principal, req SearchRequest) ([]Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	if err := req.Validate(); err != nil {
		observability.TagSearchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	found, err := s.repo.FindByTagTitles(ctx, p.UserID, req.Normalized())
	if err != nil {
		observability.TagSearchesTotal.WithLabelValues("unavailable").Inc()
		return nil, apperror.FromStorage(err)
	}

	result := ownedByIDs(found, p.UserID)
	if err := s.attachTags(ctx, result); err != nil {
		observability.TagSearchesTotal.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	observability.TagSearchesTotal.WithLabelValues("ok").Inc()
	observability.TagSearchResults.Observe(float64(len(result)))
	return result, nil
}

// SearchByTitle runs a title keyword search for the caller. Keywords go
// through ParseKeywords again, so raw input is accepted too.
func (s *bookmarkService) SearchByTitle(ctx context.Context, p *auth.Principal, keywords []string) ([]Bookmark, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	parsed, err := ParseKeywords(keywords...)
	if err != nil {
		observability.TitleSearchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	found, err := s.repo.FindByTitleKeywords(ctx, p.UserID, parsed)
	if err != nil {
		observability.TitleSearchesTotal.WithLabelValues("unavailable").Inc()
		return nil, apperror.FromStorage(err)
	}

	result := ownedByIDs(found, p.UserID)
	if err := s.attachTags(ctx, result); err != nil {
		observability.TitleSearchesTotal.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	observability.TitleSearchesTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// ownedByIDs keeps the owner's bookmarks, each once, sorted by id.
func ownedByIDs(found []Bookmark, ownerID int64) []Bookmark {
	result := make([]Bookmark, 0, len(found))
	seen := make(map[int64]bool, len(found))
	for _, b := range found {
		if b.OwnerID != ownerID || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		result = append(result, b)
	}
	slices.SortFunc(result, func(a, b Bookmark) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// attachTags fills in each bookmark's full tag list with one batched query.
func (s *bookmarkService) attachTags(ctx context.Context, bookmarks []Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}

	ids := make([]int64, len(bookmarks))
	for i, b := range bookmarks {
		ids[i] = b.ID
	}

	byBookmark, err := s.tags.GetBookmarkTagsBatch(ctx, ids)
	if err != nil {
		return err
	}

	for i := range bookmarks {
		bookmarks[i].Tags = byBookmark[bookmarks[i].ID]
		if bookmarks[i].Tags == nil {
			bookmarks[i].Tags = []tags.Tag{}
		}
	}
	return nil
}

// validateFields cleans and checks the user-editable bookmark fields.
func validateFields(title, rawURL, description string) (string, string, string, error) {
	title = sanitize.PlainText(title)
	if title == "" {
		return "", "", "", apperror.NewValidation("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", "", apperror.NewValidation(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	link, err := validateURL(rawURL)
	if err != nil {
		return "", "", "", err
	}

	description = sanitize.PlainText(description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", "", apperror.NewValidation(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	return title, link, description, nil
}

// validateURL accepts only absolute http and https URLs.
func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.NewValidation("url is required")
	}
	if len(raw) > MaxURLLength {
		return "", apperror.NewValidation("url is too long")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperror.NewValidation("url must be an absolute http or https URL")
	}
	return u.String(), nil
}

func dedupeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
