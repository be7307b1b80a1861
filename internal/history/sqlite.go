package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// SQLiteRepository implements Repository on the node_history table.
//
// Values are stored as JSON text, so numbers come back as float64.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record implements Repository.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.Device == "" {
		return ErrMissingDevice
	}
	if e.Attribute == "" {
		return ErrMissingAttribute
	}

	var value sql.NullString
	if e.Value != nil {
		data, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("marshalling value of %s: %w", e.Attribute, err)
		}
		value = sql.NullString{String: string(data), Valid: true}
	}
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	quality, err := e.Quality.MarshalText()
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Attribute, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO node_history (device, attribute, value, quality, error, stamp, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Device,
		e.Attribute,
		value,
		string(quality),
		sql.NullString{String: e.Error, Valid: e.Error != ""},
		toStamp(e.Time),
		r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// Query implements Repository.
func (r *SQLiteRepository) Query(ctx context.Context, q Query) ([]Entry, error) {
	if q.Device == "" {
		return nil, ErrMissingDevice
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	where := []string{"device = ?"}
	args := []any{q.Device}
	if q.Attribute != "" {
		where = append(where, "attribute = ?")
		args = append(args, q.Attribute)
	}
	if !q.Since.IsZero() {
		where = append(where, "stamp >= ?")
		args = append(args, toStamp(q.Since))
	}
	if !q.Until.IsZero() {
		where = append(where, "stamp < ?")
		args = append(args, toStamp(q.Until))
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device, attribute, value, quality, error, stamp, recorded_at
		 FROM node_history
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY stamp DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// Prune implements Repository.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := r.now().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM node_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		value      sql.NullString
		quality    string
		errText    sql.NullString
		stamp      float64
		recordedAt int64
	)
	if err := rows.Scan(&e.ID, &e.Device, &e.Attribute, &value, &quality, &errText, &stamp, &recordedAt); err != nil {
		return Entry{}, fmt.Errorf("scanning history: %w", err)
	}
	if value.Valid {
		if err := json.Unmarshal([]byte(value.String), &e.Value); err != nil {
			return Entry{}, fmt.Errorf("unmarshalling value of %s: %w", e.Attribute, err)
		}
	}
	q, err := graph.ParseQuality(quality)
	if err != nil {
		return Entry{}, fmt.Errorf("scanning history: %w", err)
	}
	e.Quality = q
	e.Error = errText.String
	e.Time = fromStamp(stamp)
	e.RecordedAt = time.UnixMilli(recordedAt).UTC()
	return e, nil
}

// toStamp converts a time to the float seconds used by triplets.
func toStamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromStamp(stamp float64) time.Time {
	sec, frac := math.Modf(stamp)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}
