package status

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/internal/group"
)

// Repository reads the rows the engine derives from. Group and slot reads
// go through the group repository.
type Repository struct {
	db     *sql.DB
	groups *group.Repository
}

// NewRepository creates a new status repository
func NewRepository(db *sql.DB, groups *group.Repository) *Repository {
	return &Repository{db: db, groups: groups}
}

// ActiveGroups retrieves the groups running in period
func (r *Repository) ActiveGroups(ctx context.Context, period string) ([]*group.Group, error) {
	return r.groups.ListActive(ctx, period)
}

// GetGroup retrieves a group, nil when unknown
func (r *Repository) GetGroup(ctx context.Context, id int64) (*group.Group, error) {
	return r.groups.GetByID(ctx, id)
}

// SlotsByGroup retrieves the slots of the given groups
func (r *Repository) SlotsByGroup(ctx context.Context, groupIDs []int64) (map[int64][]*group.Slot, error) {
	return r.groups.SlotsByGroup(ctx, groupIDs)
}

// PaymentsInPeriod retrieves the payments of the given groups billed in period
func (r *Repository) PaymentsInPeriod(ctx context.Context, groupIDs []int64, period string) ([]*PaymentRow, error) {
	query := `
		SELECT id, group_id, member_id, slot, status, amount
		FROM payments
		WHERE group_id = ANY($1) AND payment_month = $2
		ORDER BY id
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, pq.Array(groupIDs), period)
	if err != nil {
		return nil, fmt.Errorf("failed to get period payments: %w", err)
	}
	defer rows.Close()

	var payments []*PaymentRow
	for rows.Next() {
		p := &PaymentRow{}
		if err := rows.Scan(&p.ID, &p.GroupID, &p.MemberID, &p.Slot, &p.Status, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get period payments: %w", err)
	}

	return payments, nil
}

// CountOverdue counts unpaid and pending payments of period dated on or
// before deadline
func (r *Repository) CountOverdue(ctx context.Context, period string, deadline time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM payments
		WHERE payment_month = $1
		  AND LOWER(status) IN ('not_paid', 'pending')
		  AND payment_date <= $2::date
	`

	var count int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, period, deadline.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue payments: %w", err)
	}
	return count, nil
}

// Totals reads the dashboard aggregates for period
func (r *Repository) Totals(ctx context.Context, period string) (*Totals, error) {
	conn := database.Conn(ctx, r.db)
	t := &Totals{}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE start_month <= $1 AND (end_month IS NULL OR end_month >= $1)),
			COALESCE(SUM(monthly_amount * duration) FILTER (WHERE end_month IS NULL OR end_month >= $1), 0)
		FROM groups
	`
	if err := conn.QueryRowContext(ctx, query, period).Scan(&t.ActiveGroups, &t.TotalExpected); err != nil {
		return nil, fmt.Errorf("failed to aggregate groups: %w", err)
	}

	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&t.TotalMembers); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	query = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE LOWER(status) = 'received'), 0),
			COALESCE(SUM(amount) FILTER (WHERE LOWER(status) = 'pending'), 0),
			COALESCE(SUM(amount) FILTER (WHERE LOWER(status) = 'settled'), 0)
		FROM payments
		WHERE payment_month = $1
	`
	var received, pending, settled decimal.Decimal
	if err := conn.QueryRowContext(ctx, query, period).Scan(&received, &pending, &settled); err != nil {
		return nil, fmt.Errorf("failed to aggregate payments: %w", err)
	}
	t.Received, t.Pending, t.Settled = received, pending, settled

	return t, nil
}
