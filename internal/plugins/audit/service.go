package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// perPage is the number of entries per page in the activity feed.
const perPage = 50

// Recorder is the narrow interface write-path services use to append to the
// activity log. Record never fails the caller: a failed write is logged and
// dropped so an audit outage cannot block bookmark edits.
type Recorder interface {
	Record(ctx context.Context, p *auth.Principal, action, resourceType string, resourceID int64, resourceName string, details map[string]any)
}

// Service handles business logic for the activity log.
type Service interface {
	Recorder

	// Log validates and persists an entry.
	Log(ctx context.Context, entry *Entry) error

	// Activity returns one page (1-indexed) of the caller's activity feed.
	Activity(ctx context.Context, p *auth.Principal, page int) (*Page, error)
}

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new audit service with the given repository.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Log validates and persists an entry.
func (s *service) Log(ctx context.Context, entry *Entry) error {
	if entry.UserID == 0 {
		return apperror.NewBadRequest("user ID is required for audit entry")
	}
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}
	if entry.ResourceType == "" {
		return apperror.NewBadRequest("resource type is required for audit entry")
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		return apperror.FromStorage(fmt.Errorf("writing audit entry: %w", err))
	}
	return nil
}

// Record implements Recorder.
func (s *service) Record(ctx context.Context, p *auth.Principal, action, resourceType string, resourceID int64, resourceName string, details map[string]any) {
	if p == nil {
		return
	}

	// The entry is written after the primary change has committed; finish
	// it even if the client has gone away.
	ctx = context.WithoutCancel(ctx)

	err := s.Log(ctx, &Entry{
		UserID:       p.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ResourceName: resourceName,
		Details:      details,
	})
	if err != nil {
		slog.Error("failed to write audit log entry",
			slog.Int64("user_id", p.UserID),
			slog.String("action", action),
			slog.Int64("resource_id", resourceID),
			slog.Any("error", err),
		)
	}
}

// Activity returns the caller's paginated activity feed. Invalid page
// numbers are clamped to 1.
func (s *service) Activity(ctx context.Context, p *auth.Principal, page int) (*Page, error) {
	if p == nil {
		return nil, auth.ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	entries, total, err := s.repo.ListByUser(ctx, p.UserID, perPage, offset)
	if err != nil {
		return nil, apperror.FromStorage(fmt.Errorf("listing activity: %w", err))
	}

	return &Page{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}
