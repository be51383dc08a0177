package tags

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/audit"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
	"github.com/keyxmakerx/findfirst/internal/sanitize"
)

// TagService defines the business logic contract for tag operations.
// Every method takes the caller's principal and acts only on their tags.
type TagService interface {
	List(ctx context.Context, p *auth.Principal) ([]Tag, error)
	Get(ctx context.Context, p *auth.Principal, id int64) (*Tag, error)

	// Create adds a new tag. An existing title is a conflict.
	Create(ctx context.Context, p *auth.Principal, title string) (*Tag, error)

	// CreateAll returns one tag per title, in request order, creating the
	// ones that do not exist yet. Repeated titles map to the same tag.
	CreateAll(ctx context.Context, p *auth.Principal, titles []string) ([]Tag, error)

	// GetOrCreate returns the caller's tag with this title, creating it if
	// needed.
	GetOrCreate(ctx context.Context, p *auth.Principal, title string) (*Tag, error)

	Delete(ctx context.Context, p *auth.Principal, id int64) error

	// ValidateOwnership fails with 400 unless every id is one of the
	// caller's tags.
	ValidateOwnership(ctx context.Context, p *auth.Principal, ids []int64) error

	// Attach and Detach change bookmark links. The caller must already
	// have checked that the bookmark belongs to the principal.
	Attach(ctx context.Context, bookmarkID, tagID int64) error
	Detach(ctx context.Context, bookmarkID, tagID int64) error

	// GetBookmarkTagsBatch returns tags for many bookmarks in one query.
	GetBookmarkTagsBatch(ctx context.Context, bookmarkIDs []int64) (map[int64][]Tag, error)
}

// tagService implements TagService.
type tagService struct {
	repo     TagRepository
	recorder audit.Recorder
	now      func() time.Time
}

// NewTagService creates a new TagService backed by the given repository.
func NewTagService(repo TagRepository, recorder audit.Recorder) TagService {
	return &tagService{repo: repo, recorder: recorder, now: time.Now}
}

// NormalizeTitle strips markup and surrounding whitespace from a tag title
// and checks its length. Case is preserved: "Work" and "work" are distinct.
func NormalizeTitle(title string) (string, error) {
	title = sanitize.PlainText(title)
	if title == "" {
		return "", apperror.NewValidation("tag title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperror.NewValidation(fmt.Sprintf("tag title must be at most %d characters", MaxTitleLength))
	}
	return title, nil
}

// List returns all of the caller's tags.
func (s *tagService) List(ctx context.Context, p *auth.Principal) ([]Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	tags, err := s.repo.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}
	return tags, nil
}

// Get returns one of the caller's tags.
func (s *tagService) Get(ctx context.Context, p *auth.Principal, id int64) (*Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	tag, err := s.repo.FindByID(ctx, p.UserID, id)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}
	return tag, nil
}

// Create validates the title and persists a new tag stamped with the
// caller as its auditor.
func (s *tagService) Create(ctx context.Context, p *auth.Principal, title string) (*Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	tag := &Tag{OwnerID: p.UserID, Title: title}
	audit.StampCreate(&tag.Fields, p, s.now())

	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, apperror.FromStorage(err)
	}

	s.recorder.Record(ctx, p, audit.ActionTagCreated, audit.ResourceTag, tag.ID, tag.Title, nil)
	return tag, nil
}

// GetOrCreate looks the title up first and creates the tag only when it is
// missing. A concurrent creator winning the race is resolved by reading the
// row it inserted.
func (s *tagService) GetOrCreate(ctx context.Context, p *auth.Principal, title string) (*Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	tag, err := s.repo.FindByTitle(ctx, p.UserID, title)
	if err == nil {
		return tag, nil
	}
	if !apperror.Is(err, apperror.TypeNotFound) {
		return nil, apperror.FromStorage(err)
	}

	tag, err = s.Create(ctx, p, title)
	if apperror.Is(err, apperror.TypeConflict) {
		tag, err = s.repo.FindByTitle(ctx, p.UserID, title)
		if err != nil {
			return nil, apperror.FromStorage(err)
		}
		return tag, nil
	}
	return tag, err
}

// CreateAll resolves each title with GetOrCreate.
func (s *tagService) CreateAll(ctx context.Context, p *auth.Principal, titles []string) ([]Tag, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	if len(titles) == 0 {
		return nil, apperror.NewValidation("at least one tag title is required")
	}

	out := make([]Tag, 0, len(titles))
	seen := make(map[string]Tag, len(titles))
	for _, raw := range titles {
		title, err := NormalizeTitle(raw)
		if err != nil {
			return nil, err
		}
		if t, ok := seen[title]; ok {
			out = append(out, t)
			continue
		}

		tag, err := s.GetOrCreate(ctx, p, title)
		if err != nil {
			return nil, err
		}
		seen[title] = *tag
		out = append(out, *tag)
	}
	return out, nil
}

// Delete removes one of the caller's tags. Links to bookmarks go with it.
func (s *tagService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if p == nil {
		return auth.ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, p.UserID, id); err != nil {
		return apperror.FromStorage(err)
	}

	s.recorder.Record(ctx, p, audit.ActionTagDeleted, audit.ResourceTag, id, "", nil)
	return nil
}

// ValidateOwnership checks that every id is one of the caller's tags.
func (s *tagService) ValidateOwnership(ctx context.Context, p *auth.Principal, ids []int64) error {
	if p == nil {
		return auth.ErrUnauthenticated
	}
	if len(ids) == 0 {
		return nil
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	n, err := s.repo.CountOwned(ctx, p.UserID, unique)
	if err != nil {
		return apperror.FromStorage(err)
	}
	if n != len(unique) {
		return apperror.NewValidation("one or more tag ids do not exist")
	}
	return nil
}

// Attach links a tag to a bookmark.
func (s *tagService) Attach(ctx context.Context, bookmarkID, tagID int64) error {
	return apperror.FromStorage(s.repo.AddTagToBookmark(ctx, bookmarkID, tagID))
}

// Detach unlinks a tag from a bookmark.
func (s *tagService) Detach(ctx context.Context, bookmarkID, tagID int64) error {
	return apperror.FromStorage(s.repo.RemoveTagFromBookmark(ctx, bookmarkID, tagID))
}

// GetBookmarkTagsBatch returns tags for many bookmarks in one query.
func (s *tagService) GetBookmarkTagsBatch(ctx context.Context, bookmarkIDs []int64) (map[int64][]Tag, error) {
	m, err := s.repo.GetBookmarkTagsBatch(ctx, bookmarkIDs)
	if err != nil {
		return nil, apperror.FromStorage(err)
	}
	return m, nil
}
