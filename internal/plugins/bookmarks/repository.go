package bookmarks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/database"
)

// BookmarkRepository defines the data access contract for bookmarks. Every
// query is scoped to an owner; another user's bookmark is reported as not
// found.
type BookmarkRepository interface {
	// ListByOwner returns a user's bookmarks ordered by id ascending.
	ListByOwner(ctx context.Context, ownerID int64) ([]Bookmark, error)

	FindByID(ctx context.Context, ownerID, id int64) (*Bookmark, error)

	// FindByTagTitles returns the owner's bookmarks that carry at least one
	// tag whose title is in titles, each once, ordered by id ascending.
	FindByTagTitles(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error)

	// FindByTitleKeywords returns the owner's bookmarks whose title contains
	// at least one keyword, ignoring case, ordered by id ascending.
	FindByTitleKeywords(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error)

	// Create inserts the bookmark and links tagIDs in one transaction.
	Create(ctx context.Context, b *Bookmark, tagIDs []int64) error

	Update(ctx context.Context, b *Bookmark) error
	Delete(ctx context.Context, ownerID, id int64) error

	// DeleteAllByOwner removes every bookmark the owner has and returns how
	// many were deleted.
	DeleteAllByOwner(ctx context.Context, ownerID int64) (int64, error)
}

// bookmarkRepository implements BookmarkRepository with hand-written SQL.
type bookmarkRepository struct {
	db *database.DB
}

// NewBookmarkRepository creates a new repository backed by the given pool.
func NewBookmarkRepository(db *database.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

const bookmarkColumns = `b.id, b.owner_id, b.title, b.url, b.description,
	b.created_by, b.created_date, b.last_modified_by, b.last_modified_date`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(s scanner) (Bookmark, error) {
	var b Bookmark
	var description, createdBy, modifiedBy sql.NullString
	err := s.Scan(
		&b.ID, &b.OwnerID, &b.Title, &b.URL, &description,
		&createdBy, &b.CreatedDate, &modifiedBy, &b.LastModifiedDate,
	)
	if err != nil {
		return Bookmark{}, err
	}
	b.Description = description.String
	if createdBy.Valid {
		b.CreatedBy = &createdBy.String
	}
	if modifiedBy.Valid {
		b.LastModifiedBy = &modifiedBy.String
	}
	return b, nil
}

func (r *bookmarkRepository) queryBookmarks(ctx context.Context, query string, args ...any) ([]Bookmark, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bookmark row: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookmark rows: %w", err)
	}
	return bookmarks, nil
}

// ListByOwner returns all bookmarks for a user.
func (r *bookmarkRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmark b WHERE b.owner_id = ? ORDER BY b.id ASC`

	bookmarks, err := r.queryBookmarks(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	return bookmarks, nil
}

// FindByID retrieves one of the owner's bookmarks.
func (r *bookmarkRepository) FindByID(ctx context.Context, ownerID, id int64) (*Bookmark, error) {
	query := `SELECT ` + bookmarkColumns + ` FROM bookmark b WHERE b.id = ? AND b.owner_id = ?`

	b, err := scanBookmark(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("bookmark not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying bookmark by id: %w", err)
	}
	return &b, nil
}

// FindByTagTitles matches bookmarks through a subquery on the join table so
// a bookmark carrying several requested tags still yields one row. Both the
// bookmark and the tag must belong to the owner.
func (r *bookmarkRepository) FindByTagTitles(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
	if len(titles) == 0 {
		return []Bookmark{}, nil
	}

	args := make([]any, 0, len(titles)+2)
	args = append(args, ownerID, ownerID)
	for _, t := range titles {
		args = append(args, t)
	}

	query := fmt.Sprintf(`SELECT `+bookmarkColumns+`
	          FROM bookmark b
	          WHERE b.owner_id = ?
	            AND b.id IN (
	                SELECT bt.bookmark_id
	                FROM bookmark_tag bt
	                INNER JOIN tag t ON t.id = bt.tag_id
	                WHERE t.owner_id = ? AND t.title IN (%s)
	            )
	          ORDER BY b.id ASC`, database.Placeholders(len(titles)))

	bookmarks, err := r.queryBookmarks(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching bookmarks by tag: %w", err)
	}
	return bookmarks, nil
}

// FindByTitleKeywords ORs one case-insensitive LIKE per keyword. LIKE
// wildcards in keywords are escaped so they match literally.
func (r *bookmarkRepository) FindByTitleKeywords(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error) {
	if len(keywords) == 0 {
		return []Bookmark{}, nil
	}

	conds := make([]string, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	args = append(args, ownerID)
	for i, kw := range keywords {
		conds[i] = "LOWER(b.title) LIKE ?"
		args = append(args, "%"+escapeLike(strings.ToLower(kw))+"%")
	}

	query := `SELECT ` + bookmarkColumns + `
	          FROM bookmark b
	          WHERE b.owner_id = ? AND (` + strings.Join(conds, " OR ") + `)
	          ORDER BY b.id ASC`

	bookmarks, err := r.queryBookmarks(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching bookmarks by title: %w", err)
	}
	return bookmarks, nil
}

// likeEscaper escapes LIKE metacharacters with backslash, the default
// escape character on both MariaDB and PostgreSQL.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Create inserts a bookmark and its tag links atomically.
func (r *bookmarkRepository) Create(ctx context.Context, b *Bookmark, tagIDs []int64) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `INSERT INTO bookmark (owner_id, title, url, description,
		                  created_by, created_date, last_modified_by, last_modified_date)
		          VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

		err := tx.QueryRowContext(ctx, query,
			b.OwnerID, b.Title, b.URL, nullIfEmpty(b.Description),
			b.CreatedBy, b.CreatedDate, b.LastModifiedBy, b.LastModifiedDate,
		).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("inserting bookmark: %w", err)
		}

		link := r.db.Dialect.InsertIgnore("bookmark_tag", "bookmark_id", "tag_id")
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx, link, b.ID, tagID); err != nil {
				return fmt.Errorf("linking tag %d: %w", tagID, err)
			}
		}
		return nil
	})
}

// Update rewrites the editable columns and the last-modified stamp.
func (r *bookmarkRepository) Update(ctx context.Context, b *Bookmark) error {
	query := `UPDATE bookmark
	          SET title = ?, url = ?, description = ?, last_modified_by = ?, last_modified_date = ?
	          WHERE id = ? AND owner_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		b.Title, b.URL, nullIfEmpty(b.Description),
		b.LastModifiedBy, b.LastModifiedDate,
		b.ID, b.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating bookmark: %w", err)
	}
	return requireRow(result, "bookmark not found")
}

// Delete removes one of the owner's bookmarks. Tag links cascade.
func (r *bookmarkRepository) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmark WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting bookmark: %w", err)
	}
	return requireRow(result, "bookmark not found")
}

// DeleteAllByOwner removes all of the owner's bookmarks.
func (r *bookmarkRepository) DeleteAllByOwner(ctx context.Context, ownerID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookmark WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("deleting all bookmarks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// requireRow maps "no rows affected" to NotFound.
func requireRow(result sql.Result, msg string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound(msg)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
