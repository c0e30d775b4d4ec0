package paymentlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fkhayef/kasmoni/internal/database"
)

// Repository appends and reads audit entries. There is deliberately no
// update or delete.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new payment log repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func encodeImage(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Write appends an entry, inside the ctx transaction when there is one
func (r *Repository) Write(ctx context.Context, e *Entry) error {
	oldValues, err := encodeImage(e.OldValues)
	if err != nil {
		return fmt.Errorf("failed to encode old values: %w", err)
	}
	newValues, err := encodeImage(e.NewValues)
	if err != nil {
		return fmt.Errorf("failed to encode new values: %w", err)
	}

	query := `
		INSERT INTO payment_logs (
			payment_id, group_id, member_id, action, old_values, new_values, details,
			performed_by_id, performed_by_username, ip_address, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, NULLIF($10, ''), NULLIF($11, ''))
		RETURNING id, created_at
	`

	err = database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		e.PaymentID,
		e.GroupID,
		e.MemberID,
		string(e.Action),
		oldValues,
		newValues,
		e.Details,
		e.PerformedByID,
		e.PerformedByUsername,
		e.IPAddress,
		e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write payment log: %w", err)
	}

	return nil
}

// List retrieves entries matching f, newest first
func (r *Repository) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where, args := f.where()
	conn := database.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payment logs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, payment_id, group_id, member_id, action, old_values, new_values,
		       COALESCE(details, ''), performed_by_id, performed_by_username,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM payment_logs%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := conn.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment logs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var action string
		var oldRaw, newRaw []byte
		err := rows.Scan(
			&e.ID,
			&e.PaymentID,
			&e.GroupID,
			&e.MemberID,
			&action,
			&oldRaw,
			&newRaw,
			&e.Details,
			&e.PerformedByID,
			&e.PerformedByUsername,
			&e.IPAddress,
			&e.UserAgent,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment log: %w", err)
		}
		e.Action = Action(action)
		if len(oldRaw) > 0 {
			if err := json.Unmarshal(oldRaw, &e.OldValues); err != nil {
				return nil, 0, fmt.Errorf("failed to decode old values: %w", err)
			}
		}
		if len(newRaw) > 0 {
			if err := json.Unmarshal(newRaw, &e.NewValues); err != nil {
				return nil, 0, fmt.Errorf("failed to decode new values: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payment logs: %w", err)
	}

	return entries, total, nil
}
