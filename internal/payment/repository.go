package payment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/database"
)

// payment columns in insert order, shared by the live, trash and archive tables
const paymentFields = `group_id, member_id, amount, payment_date, payment_month, slot,
	payment_type, sender_bank, receiver_bank, status, notes, created_by`

const paymentSelect = `
	SELECT p.id, p.group_id, p.member_id, p.amount, p.payment_date, p.payment_month, p.slot,
	       p.payment_type, p.sender_bank, p.receiver_bank, p.status, p.notes, p.created_by,
	       p.created_at, p.updated_at,
	       m.first_name || ' ' || m.last_name, g.name
	FROM payments p
	JOIN members m ON p.member_id = m.id
	JOIN groups g ON p.group_id = g.id
`

// Repository handles payment, trashbox and archive persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new payment repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (*Payment, error) {
	p := &Payment{}
	var paymentType, status string
	err := s.Scan(
		&p.ID,
		&p.GroupID,
		&p.MemberID,
		&p.Amount,
		&p.PaymentDate,
		&p.PaymentMonth,
		&p.Slot,
		&paymentType,
		&p.SenderBank,
		&p.ReceiverBank,
		&status,
		&p.Notes,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.MemberName,
		&p.GroupName,
	)
	p.PaymentType = Type(paymentType)
	p.Status = Status(status)
	return p, err
}

func paymentArgs(p *Payment) []any {
	return []any{
		p.GroupID,
		p.MemberID,
		p.Amount,
		p.PaymentDate,
		p.PaymentMonth,
		p.Slot,
		string(p.PaymentType),
		p.SenderBank,
		p.ReceiverBank,
		string(p.Status),
		p.Notes,
		p.CreatedBy,
	}
}

// GroupExists reports whether the group exists
func (r *Repository) GroupExists(ctx context.Context, groupID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`, groupID)
}

// MemberExists reports whether the member exists
func (r *Repository) MemberExists(ctx context.Context, memberID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)`, memberID)
}

func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return ok, nil
}

// MemberSlots lists the receive months a member holds in a group
func (r *Repository) MemberSlots(ctx context.Context, groupID, memberID int64) ([]string, error) {
	query := `
		SELECT receive_month FROM group_members
		WHERE group_id = $1 AND member_id = $2
		ORDER BY receive_month
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, groupID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member slots: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan member slot: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// Create inserts a new payment
func (r *Repository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		INSERT INTO payments (` + paymentFields + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, paymentArgs(p)...).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Upsert updates the latest payment for the same group, member and slot in
// place, or inserts one when there is none
func (r *Repository) Upsert(ctx context.Context, p *Payment) (*Payment, error) {
	conn := database.Conn(ctx, r.db)

	var id int64
	err := conn.QueryRowContext(ctx, `
		SELECT id FROM payments
		WHERE group_id = $1 AND member_id = $2 AND slot = $3
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`, p.GroupID, p.MemberID, p.Slot).Scan(&id)
	if err == sql.ErrNoRows {
		return r.Create(ctx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	p.ID = id
	return r.Update(ctx, p)
}

// InsertWithID re-inserts a payment under its original id
func (r *Repository) InsertWithID(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, ` + paymentFields + `, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	args := append([]any{p.ID}, paymentArgs(p)...)
	args = append(args, p.CreatedAt)
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to restore payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Payment, error) {
	return r.get(ctx, paymentSelect+` WHERE p.id = $1`, id)
}

// GetForUpdate retrieves a payment and locks its row
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Payment, error) {
	return r.get(ctx, paymentSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int64) (*Payment, error) {
	p, err := scanPayment(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.GroupID != nil {
		add("p.group_id = $%d", *f.GroupID)
	}
	if f.MemberID != nil {
		add("p.member_id = $%d", *f.MemberID)
	}
	if f.PaymentMonth != "" {
		add("p.payment_month = $%d", f.PaymentMonth)
	}
	if f.Slot != "" {
		add("p.slot = $%d", f.Slot)
	}
	if f.Status != "" {
		add("LOWER(p.status) = $%d", string(f.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List retrieves payments matching f, newest first
func (r *Repository) List(ctx context.Context, f Filter) ([]*Payment, int, error) {
	where, args := f.where()
	conn := database.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := paymentSelect + where + fmt.Sprintf(` ORDER BY p.payment_date DESC, p.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := conn.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, total, nil
}

// UpdateStatus sets a payment's status
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) (*Payment, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Update writes every mutable column of p
func (r *Repository) Update(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		UPDATE payments
		SET group_id = $2, member_id = $3, amount = $4, payment_date = $5, payment_month = $6,
		    slot = $7, payment_type = $8, sender_bank = $9, receiver_bank = $10, status = $11,
		    notes = $12, updated_at = NOW()
		WHERE id = $1
	`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		p.ID,
		p.GroupID,
		p.MemberID,
		p.Amount,
		p.PaymentDate,
		p.PaymentMonth,
		p.Slot,
		string(p.PaymentType),
		p.SenderBank,
		p.ReceiverBank,
		string(p.Status),
		p.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, p.ID)
}

// Delete removes a live payment row
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// InsertTrash copies p into the trashbox
func (r *Repository) InsertTrash(ctx context.Context, p *Payment, actor auth.Actor) (*TrashEntry, error) {
	query := `
		INSERT INTO payments_trashbox (original_id, ` + paymentFields + `,
			original_created_at, deleted_by_id, deleted_by_username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, deleted_at
	`

	args := append([]any{p.ID}, paymentArgs(p)...)
	args = append(args, p.CreatedAt, nullableID(actor.ID), actor.Username)

	entry := &TrashEntry{Payment: *p, DeletedByID: nullableID(actor.ID), DeletedByUsername: actor.Username}
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.DeletedAt); err != nil {
		return nil, fmt.Errorf("failed to move payment to trash: %w", err)
	}
	return entry, nil
}

const trashSelect = `
	SELECT t.id, t.original_id, t.group_id, t.member_id, t.amount, t.payment_date, t.payment_month,
	       t.slot, t.payment_type, t.sender_bank, t.receiver_bank, t.status, t.notes, t.created_by,
	       t.original_created_at, t.deleted_at,
	       COALESCE(m.first_name || ' ' || m.last_name, ''), COALESCE(g.name, ''),
	       t.deleted_by_id, t.deleted_by_username, t.deleted_at
	FROM payments_trashbox t
	LEFT JOIN members m ON t.member_id = m.id
	LEFT JOIN groups g ON t.group_id = g.id
`

func scanTrash(s scanner) (*TrashEntry, error) {
	entry := &TrashEntry{}
	// the shared payment columns sit between the trash id and the deletion stamp
	var id int64
	p, err := scanPayment(scannerFunc(func(dest ...any) error {
		return s.Scan(append([]any{&id}, append(dest, &entry.DeletedByID, &entry.DeletedByUsername, &entry.DeletedAt)...)...)
	}))
	if err != nil {
		return nil, err
	}
	entry.ID = id
	entry.Payment = *p
	return entry, nil
}

type scannerFunc func(dest ...any) error

func (f scannerFunc) Scan(dest ...any) error { return f(dest...) }

// GetTrash retrieves a trash entry by its ID
func (r *Repository) GetTrash(ctx context.Context, id int64) (*TrashEntry, error) {
	return r.getTrash(ctx, trashSelect+` WHERE t.id = $1`, id)
}

// GetTrashForUpdate retrieves a trash entry and locks it
func (r *Repository) GetTrashForUpdate(ctx context.Context, id int64) (*TrashEntry, error) {
	return r.getTrash(ctx, trashSelect+` WHERE t.id = $1 FOR UPDATE OF t`, id)
}

func (r *Repository) getTrash(ctx context.Context, query string, id int64) (*TrashEntry, error) {
	entry, err := scanTrash(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trash entry: %w", err)
	}
	return entry, nil
}

// ListTrash retrieves trash entries, most recently deleted first
func (r *Repository) ListTrash(ctx context.Context, limit, offset int) ([]*TrashEntry, int, error) {
	conn := database.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments_trashbox`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trash: %w", err)
	}

	rows, err := conn.QueryContext(ctx, trashSelect+` ORDER BY t.deleted_at DESC, t.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trash: %w", err)
	}
	defer rows.Close()

	var entries []*TrashEntry
	for rows.Next() {
		entry, err := scanTrash(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trash entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list trash: %w", err)
	}

	return entries, total, nil
}

// DeleteTrash removes a trash entry
func (r *Repository) DeleteTrash(ctx context.Context, id int64) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM payments_trashbox WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete trash entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ArchiveExists reports whether a payment id has already been archived
func (r *Repository) ArchiveExists(ctx context.Context, originalID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM payments_archive WHERE original_id = $1)`, originalID)
}

// InsertArchive copies p into the archive
func (r *Repository) InsertArchive(ctx context.Context, p *Payment, reason *string, actor auth.Actor) (*ArchiveEntry, error) {
	query := `
		INSERT INTO payments_archive (original_id, ` + paymentFields + `,
			original_created_at, archive_reason, archived_by_id, archived_by_username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, archived_at
	`

	args := append([]any{p.ID}, paymentArgs(p)...)
	args = append(args, p.CreatedAt, reason, nullableID(actor.ID), actor.Username)

	entry := &ArchiveEntry{Payment: *p, ArchiveReason: reason, ArchivedByID: nullableID(actor.ID), ArchivedByUsername: actor.Username}
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.ArchivedAt); err != nil {
		return nil, fmt.Errorf("failed to archive payment: %w", err)
	}
	return entry, nil
}

// ListArchive retrieves archive entries, most recently archived first
func (r *Repository) ListArchive(ctx context.Context, limit, offset int) ([]*ArchiveEntry, int, error) {
	conn := database.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments_archive`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count archive: %w", err)
	}

	query := `
		SELECT a.id, a.original_id, a.group_id, a.member_id, a.amount, a.payment_date, a.payment_month,
		       a.slot, a.payment_type, a.sender_bank, a.receiver_bank, a.status, a.notes, a.created_by,
		       a.original_created_at, a.archived_at,
		       COALESCE(m.first_name || ' ' || m.last_name, ''), COALESCE(g.name, ''),
		       a.archive_reason, a.archived_by_id, a.archived_by_username, a.archived_at
		FROM payments_archive a
		LEFT JOIN members m ON a.member_id = m.id
		LEFT JOIN groups g ON a.group_id = g.id
		ORDER BY a.archived_at DESC, a.id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list archive: %w", err)
	}
	defer rows.Close()

	var entries []*ArchiveEntry
	for rows.Next() {
		entry := &ArchiveEntry{}
		var id int64
		p, err := scanPayment(scannerFunc(func(dest ...any) error {
			return rows.Scan(append([]any{&id}, append(dest, &entry.ArchiveReason, &entry.ArchivedByID, &entry.ArchivedByUsername, &entry.ArchivedAt)...)...)
		}))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan archive entry: %w", err)
		}
		entry.ID = id
		entry.Payment = *p
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list archive: %w", err)
	}

	return entries, total, nil
}
