package group

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fkhayef/kasmoni/internal/database"
)

const groupColumns = `id, name, monthly_amount, max_members, duration, start_month, end_month, created_at, updated_at`

// Repository handles group and slot data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(s scanner) (*Group, error) {
	g := &Group{}
	err := s.Scan(
		&g.ID,
		&g.Name,
		&g.MonthlyAmount,
		&g.MaxMembers,
		&g.Duration,
		&g.StartMonth,
		&g.EndMonth,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

// Create inserts a new group into the database
func (r *Repository) Create(ctx context.Context, g *Group) (*Group, error) {
	query := `
		INSERT INTO groups (name, monthly_amount, max_members, duration, start_month, end_month)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + groupColumns

	created, err := scanGroup(database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		g.Name,
		g.MonthlyAmount,
		g.MaxMembers,
		g.Duration,
		g.StartMonth,
		g.EndMonth,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return created, nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	return r.get(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
}

// GetForUpdate retrieves a group and locks its row for the current transaction
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Group, error) {
	return r.get(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int64) (*Group, error) {
	g, err := scanGroup(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return g, nil
}

// List retrieves groups, newest first
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	var total int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups
		ORDER BY start_month DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	groups, err := r.queryGroups(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// ListByMemberID retrieves the groups in which a member holds a slot
func (r *Repository) ListByMemberID(ctx context.Context, memberID int64) ([]*Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE id IN (SELECT group_id FROM group_members WHERE member_id = $1)
		ORDER BY start_month DESC, id DESC
	`

	return r.queryGroups(ctx, query, memberID)
}

// ListActive retrieves the groups running in period: started on or before
// it and not yet ended
func (r *Repository) ListActive(ctx context.Context, period string) ([]*Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE start_month <= $1 AND (end_month IS NULL OR end_month >= $1)
		ORDER BY name, id
	`

	return r.queryGroups(ctx, query, period)
}

func (r *Repository) queryGroups(ctx context.Context, query string, args ...any) ([]*Group, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	return groups, nil
}

// Update writes every mutable column of g, including the derived end month
func (r *Repository) Update(ctx context.Context, g *Group) (*Group, error) {
	query := `
		UPDATE groups
		SET name = $2,
		    monthly_amount = $3,
		    max_members = $4,
		    duration = $5,
		    start_month = $6,
		    end_month = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + groupColumns

	updated, err := scanGroup(database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		g.ID,
		g.Name,
		g.MonthlyAmount,
		g.MaxMembers,
		g.Duration,
		g.StartMonth,
		g.EndMonth,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return updated, nil
}

// CountDependents counts slots, payments and requests referencing a group
func (r *Repository) CountDependents(ctx context.Context, id int64) (int, error) {
	query := `
		SELECT (SELECT COUNT(*) FROM group_members WHERE group_id = $1)
		     + (SELECT COUNT(*) FROM payments WHERE group_id = $1)
		     + (SELECT COUNT(*) FROM payment_requests WHERE group_id = $1)
	`

	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count group dependents: %w", err)
	}
	return count, nil
}

// Delete removes a group from the database
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MemberName returns the display name of a member, or ok=false if absent
func (r *Repository) MemberName(ctx context.Context, memberID int64) (string, bool, error) {
	query := `SELECT first_name || ' ' || last_name FROM members WHERE id = $1`

	var name string
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, memberID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get member: %w", err)
	}
	return name, true, nil
}

const slotSelect = `
	SELECT gm.id, gm.group_id, gm.member_id, gm.receive_month, gm.created_at,
	       m.first_name || ' ' || m.last_name, m.email
	FROM group_members gm
	JOIN members m ON gm.member_id = m.id
`

func scanSlot(s scanner) (*Slot, error) {
	slot := &Slot{}
	err := s.Scan(
		&slot.ID,
		&slot.GroupID,
		&slot.MemberID,
		&slot.ReceiveMonth,
		&slot.CreatedAt,
		&slot.MemberName,
		&slot.Email,
	)
	return slot, err
}

// ListSlots retrieves all slot assignments of a group in payout order
func (r *Repository) ListSlots(ctx context.Context, groupID int64) ([]*Slot, error) {
	query := slotSelect + ` WHERE gm.group_id = $1 ORDER BY gm.receive_month, gm.id`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}

	return slots, nil
}

// SlotsByGroup retrieves the slots of several groups keyed by group id
func (r *Repository) SlotsByGroup(ctx context.Context, groupIDs []int64) (map[int64][]*Slot, error) {
	query := slotSelect + ` WHERE gm.group_id = ANY($1) ORDER BY gm.group_id, gm.receive_month, gm.id`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	defer rows.Close()

	slots := make(map[int64][]*Slot, len(groupIDs))
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots[slot.GroupID] = append(slots[slot.GroupID], slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}

	return slots, nil
}

// GetSlot retrieves one slot of a group
func (r *Repository) GetSlot(ctx context.Context, groupID, slotID int64) (*Slot, error) {
	return r.getSlot(ctx, slotSelect+` WHERE gm.group_id = $1 AND gm.id = $2`, groupID, slotID)
}

// SlotByMonth retrieves the slot assigned to a receive month, if any
func (r *Repository) SlotByMonth(ctx context.Context, groupID int64, month string) (*Slot, error) {
	return r.getSlot(ctx, slotSelect+` WHERE gm.group_id = $1 AND gm.receive_month = $2`, groupID, month)
}

func (r *Repository) getSlot(ctx context.Context, query string, args ...any) (*Slot, error) {
	slot, err := scanSlot(database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// CountDistinctMonths counts the distinct receive months assigned in a group
func (r *Repository) CountDistinctMonths(ctx context.Context, groupID int64) (int, error) {
	query := `SELECT COUNT(DISTINCT receive_month) FROM group_members WHERE group_id = $1`

	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return count, nil
}

// AddSlot assigns a member to a receive month
func (r *Repository) AddSlot(ctx context.Context, groupID, memberID int64, month string) (*Slot, error) {
	query := `
		INSERT INTO group_members (group_id, member_id, receive_month)
		VALUES ($1, $2, $3)
		RETURNING id, group_id, member_id, receive_month, created_at
	`

	slot := &Slot{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, groupID, memberID, month).Scan(
		&slot.ID,
		&slot.GroupID,
		&slot.MemberID,
		&slot.ReceiveMonth,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add slot: %w", err)
	}

	return slot, nil
}

// CountSlotPayments counts live payments funding a member's slot
func (r *Repository) CountSlotPayments(ctx context.Context, groupID, memberID int64, month string) (int, error) {
	query := `SELECT COUNT(*) FROM payments WHERE group_id = $1 AND member_id = $2 AND slot = $3`

	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, groupID, memberID, month).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count slot payments: %w", err)
	}
	return count, nil
}

// RemoveSlot deletes a slot assignment
func (r *Repository) RemoveSlot(ctx context.Context, slotID int64) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM group_members WHERE id = $1`, slotID)
	if err != nil {
		return false, fmt.Errorf("failed to remove slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MonthsOutside lists assigned receive months that fall outside [start, end]
func (r *Repository) MonthsOutside(ctx context.Context, groupID int64, start, end string) ([]string, error) {
	query := `
		SELECT DISTINCT receive_month
		FROM group_members
		WHERE group_id = $1 AND (receive_month < $2 OR receive_month > $3)
		ORDER BY receive_month
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, groupID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan slot month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}
