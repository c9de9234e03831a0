// Package history provides access to the command_log table for
// querying what was sent to the display and how it responded.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandLog represents a single recorded command exchange.
type CommandLog struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Frame     string    `json:"frame"`
	Response  string    `json:"response,omitempty"`
	Status    string    `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which command log entries to return.
type Filter struct {
	DeviceID string // optional: filter by device
	Command  string // optional: filter by command name (power_on, input_select, ...)
	Status   string // optional: filter by outcome (ok, timeout, failed, rejected)
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated command log results.
type ListResult struct {
	Entries []CommandLog `json:"entries"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// Repository defines the interface for command log operations.
type Repository interface {
	Create(ctx context.Context, entry *CommandLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads and writes command logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new command log entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *CommandLog) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, device_id, command, frame, response, status, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DeviceID, entry.Command,
		entry.Frame, entry.Response, entry.Status, entry.LatencyMS,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}

	return nil
}

// List returns command logs matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for command log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command logs: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device_id, command, frame, response, status, latency_ms, created_at FROM command_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command logs: %w", err)
	}
	defer rows.Close()

	var entries []CommandLog
	for rows.Next() {
		var entry CommandLog
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.Command,
			&entry.Frame, &entry.Response, &entry.Status, &entry.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		entry.CreatedAt = t

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command logs: %w", err)
	}

	if entries == nil {
		entries = []CommandLog{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
