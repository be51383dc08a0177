package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/keyxmakerx/findfirst/internal/database"
)

// Repository defines the data access contract for the activity log.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type Repository interface {
	// Log inserts a new entry and sets entry.ID.
	Log(ctx context.Context, entry *Entry) error

	// ListByUser returns a user's entries, most recent first, plus the
	// total count for pagination.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, int, error)
}

// repository implements Repository with SQL shared by both dialects.
type repository struct {
	db *database.DB
}

// NewRepository creates a new repository backed by the given DB pool.
func NewRepository(db *database.DB) Repository {
	return &repository{db: db}
}

// Log inserts a new entry. The details map is serialized to JSON before
// storage. Nil details are stored as SQL NULL.
func (r *repository) Log(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO audit_log (user_id, action, resource_type, resource_id, resource_name, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling audit details: %w", err)
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Action, entry.ResourceType,
		entry.ResourceID, entry.ResourceName,
		detailsJSON, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListByUser returns entries for a user ordered by most recent first.
func (r *repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := `SELECT id, user_id, action, resource_type, resource_id, resource_name, details, created_at
	          FROM audit_log
	          WHERE user_id = ?
	          ORDER BY created_at DESC, id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.ResourceName, &detailsJSON, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning audit entry: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				// Non-fatal: don't break the feed over one bad row.
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, total, nil
}
