package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SQLiteRepository implements Repository on the audit_log table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create implements Repository. IDs are ULIDs, so they sort by creation.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return ErrMissingAction
	}
	if e.Device == "" {
		return ErrMissingDevice
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.CreatedAt), ulid.DefaultEntropy()).String()
	}

	var details sql.NullString
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, device, attribute, subject, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Device,
		nullableString(e.Attribute), nullableString(e.Subject),
		e.Source, details,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*ListResult, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	for _, c := range []struct{ column, value string }{
		{"action", f.Action},
		{"device", f.Device},
		{"attribute", f.Attribute},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	//nolint:gosec // WHERE built from fixed column names and ? placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	//nolint:gosec // WHERE built from fixed column names and ? placeholders
	query := "SELECT id, action, device, attribute, subject, source, details, created_at FROM audit_log " +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                           Entry
			attribute, subject, details sql.NullString
			createdAt                   int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Device, &attribute, &subject, &e.Source, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Attribute = attribute.String
		e.Subject = subject.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding details of %s: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
