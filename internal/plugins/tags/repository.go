package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/database"
)

// TagRepository defines the data access contract for tags and bookmark-tag
// associations. Every lookup is scoped to an owner; a tag belonging to
// someone else is reported as not found.
type TagRepository interface {
	// Create inserts a new tag. The tag's ID is set on the struct after insert.
	Create(ctx context.Context, tag *Tag) error

	FindByID(ctx context.Context, ownerID, id int64) (*Tag, error)
	FindByTitle(ctx context.Context, ownerID int64, title string) (*Tag, error)

	// ListByOwner returns all of a user's tags ordered by id.
	ListByOwner(ctx context.Context, ownerID int64) ([]Tag, error)

	// CountOwned returns how many of ids belong to ownerID.
	CountOwned(ctx context.Context, ownerID int64, ids []int64) (int, error)

	// Delete removes a tag. Cascade deletes remove bookmark_tag rows.
	Delete(ctx context.Context, ownerID, id int64) error

	// AddTagToBookmark links a tag to a bookmark; an existing link is kept.
	AddTagToBookmark(ctx context.Context, bookmarkID, tagID int64) error

	// RemoveTagFromBookmark deletes a link. Returns NotFound if none existed.
	RemoveTagFromBookmark(ctx context.Context, bookmarkID, tagID int64) error

	// GetBookmarkTagsBatch returns tags for many bookmarks in one query,
	// keyed by bookmark ID.
	GetBookmarkTagsBatch(ctx context.Context, bookmarkIDs []int64) (map[int64][]Tag, error)
}

// tagRepository implements TagRepository with hand-written SQL.
type tagRepository struct {
	db *database.DB
}

// NewTagRepository creates a new TagRepository backed by the given database connection.
func NewTagRepository(db *database.DB) TagRepository {
	return &tagRepository{db: db}
}

const tagColumns = `t.id, t.owner_id, t.title, t.created_by, t.created_date, t.last_modified_by, t.last_modified_date`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTag(s scanner, extra ...any) (Tag, error) {
	var t Tag
	var createdBy, modifiedBy sql.NullString
	dest := append(extra,
		&t.ID, &t.OwnerID, &t.Title,
		&createdBy, &t.CreatedDate, &modifiedBy, &t.LastModifiedDate,
	)
	if err := s.Scan(dest...); err != nil {
		return Tag{}, err
	}
	t.CreatedBy = nullStringPtr(createdBy)
	t.LastModifiedBy = nullStringPtr(modifiedBy)
	return t, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create inserts a new tag and sets the generated ID on the provided struct.
func (r *tagRepository) Create(ctx context.Context, tag *Tag) error {
	query := `INSERT INTO tag (owner_id, title, created_by, created_date, last_modified_by, last_modified_date)
	          VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		tag.OwnerID, tag.Title,
		tag.CreatedBy, tag.CreatedDate, tag.LastModifiedBy, tag.LastModifiedDate,
	).Scan(&tag.ID)
	if database.IsDuplicate(err) {
		return apperror.NewConflict("a tag with this title already exists")
	}
	if err != nil {
		return fmt.Errorf("inserting tag: %w", err)
	}

	return nil
}

// FindByID retrieves one of the owner's tags by primary key.
func (r *tagRepository) FindByID(ctx context.Context, ownerID, id int64) (*Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tag t WHERE t.id = ? AND t.owner_id = ?`

	t, err := scanTag(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("tag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag by id: %w", err)
	}
	return &t, nil
}

// FindByTitle retrieves one of the owner's tags by exact title.
func (r *tagRepository) FindByTitle(ctx context.Context, ownerID int64, title string) (*Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tag t WHERE t.owner_id = ? AND t.title = ?`

	t, err := scanTag(r.db.QueryRowContext(ctx, query, ownerID, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("tag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag by title: %w", err)
	}
	return &t, nil
}

// ListByOwner returns all tags for a user, ordered by id.
func (r *tagRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tag t WHERE t.owner_id = ? ORDER BY t.id ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tags by owner: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}

	return tags, nil
}

// CountOwned counts how many of the given tag IDs the owner holds.
func (r *tagRepository) CountOwned(ctx context.Context, ownerID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM tag WHERE owner_id = ? AND id IN (%s)`,
		database.Placeholders(len(ids)))

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting owned tags: %w", err)
	}
	return n, nil
}

// Delete removes one of the owner's tags.
func (r *tagRepository) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tag WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NewNotFound("tag not found")
	}

	return nil
}

// AddTagToBookmark creates a row in the bookmark_tag join table, silently
// skipping an association that already exists.
func (r *tagRepository) AddTagToBookmark(ctx context.Context, bookmarkID, tagID int64) error {
	query := r.db.Dialect.InsertIgnore("bookmark_tag", "bookmark_id", "tag_id")

	if _, err := r.db.ExecContext(ctx, query, bookmarkID, tagID); err != nil {
		return fmt.Errorf("adding tag to bookmark: %w", err)
	}
	return nil
}

// RemoveTagFromBookmark deletes a row from the bookmark_tag join table.
func (r *tagRepository) RemoveTagFromBookmark(ctx context.Context, bookmarkID, tagID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bookmark_tag WHERE bookmark_id = ? AND tag_id = ?`, bookmarkID, tagID)
	if err != nil {
		return fmt.Errorf("removing tag from bookmark: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NewNotFound("tag is not attached to this bookmark")
	}
	return nil
}

// GetBookmarkTagsBatch returns tags for multiple bookmarks in a single query,
// keyed by bookmark ID. This avoids N+1 queries on list and search results.
//
// Returns an empty map if no bookmark IDs are provided.
func (r *tagRepository) GetBookmarkTagsBatch(ctx context.Context, bookmarkIDs []int64) (map[int64][]Tag, error) {
	result := make(map[int64][]Tag)
	if len(bookmarkIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(bookmarkIDs))
	for i, id := range bookmarkIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT bt.bookmark_id, `+tagColumns+`
	          FROM tag t
	          INNER JOIN bookmark_tag bt ON bt.tag_id = t.id
	          WHERE bt.bookmark_id IN (%s)
	          ORDER BY bt.bookmark_id ASC, t.id ASC`, database.Placeholders(len(bookmarkIDs)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch getting bookmark tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookmarkID int64
		t, err := scanTag(rows, &bookmarkID)
		if err != nil {
			return nil, fmt.Errorf("scanning batch bookmark tag row: %w", err)
		}
		result[bookmarkID] = append(result[bookmarkID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch bookmark tag rows: %w", err)
	}

	return result, nil
}
