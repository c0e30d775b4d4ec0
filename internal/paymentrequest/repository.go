package paymentrequest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/internal/payment"
)

const requestSelect = `
	SELECT pr.id, pr.group_id, pr.member_id, pr.amount, pr.payment_date, pr.payment_month, pr.slot,
	       pr.payment_type, pr.sender_bank, pr.receiver_bank, pr.notes, pr.status, pr.admin_notes,
	       pr.payment_id, pr.requested_by, pr.reviewed_by, pr.reviewed_at, pr.created_at,
	       m.first_name || ' ' || m.last_name, g.name
	FROM payment_requests pr
	JOIN members m ON pr.member_id = m.id
	JOIN groups g ON pr.group_id = g.id
`

// Repository handles payment request persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new payment request repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*PaymentRequest, error) {
	pr := &PaymentRequest{}
	var paymentType, status string
	err := s.Scan(
		&pr.ID,
		&pr.GroupID,
		&pr.MemberID,
		&pr.Amount,
		&pr.PaymentDate,
		&pr.PaymentMonth,
		&pr.Slot,
		&paymentType,
		&pr.SenderBank,
		&pr.ReceiverBank,
		&pr.Notes,
		&status,
		&pr.AdminNotes,
		&pr.PaymentID,
		&pr.RequestedBy,
		&pr.ReviewedBy,
		&pr.ReviewedAt,
		&pr.CreatedAt,
		&pr.MemberName,
		&pr.GroupName,
	)
	pr.PaymentType = payment.Type(paymentType)
	pr.Status = Status(status)
	return pr, err
}

// Create inserts a new pending request
func (r *Repository) Create(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error) {
	query := `
		INSERT INTO payment_requests (
			group_id, member_id, amount, payment_date, payment_month, slot,
			payment_type, sender_bank, receiver_bank, notes, status, requested_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		pr.GroupID,
		pr.MemberID,
		pr.Amount,
		pr.PaymentDate,
		pr.PaymentMonth,
		pr.Slot,
		string(pr.PaymentType),
		pr.SenderBank,
		pr.ReceiverBank,
		pr.Notes,
		string(StatusPendingApproval),
		pr.RequestedBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a payment request by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*PaymentRequest, error) {
	return r.get(ctx, requestSelect+` WHERE pr.id = $1`, id)
}

// GetForUpdate retrieves a payment request and locks its row
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*PaymentRequest, error) {
	return r.get(ctx, requestSelect+` WHERE pr.id = $1 FOR UPDATE OF pr`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int64) (*PaymentRequest, error) {
	pr, err := scanRequest(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return pr, nil
}

// PendingExists reports whether an unreviewed request already covers the
// same group, member, slot and billing period
func (r *Repository) PendingExists(ctx context.Context, groupID, memberID int64, slot, paymentMonth string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM payment_requests
			WHERE group_id = $1 AND member_id = $2 AND slot = $3 AND payment_month = $4
			  AND status = $5
		)
	`

	var exists bool
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		groupID, memberID, slot, paymentMonth, string(StatusPendingApproval)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending requests: %w", err)
	}
	return exists, nil
}

// List retrieves payment requests matching f, newest first
func (r *Repository) List(ctx context.Context, f Filter) ([]*PaymentRequest, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("pr.status = $%d", len(args)))
	}
	if f.GroupID != nil {
		args = append(args, *f.GroupID)
		conds = append(conds, fmt.Sprintf("pr.group_id = $%d", len(args)))
	}
	if f.MemberID != nil {
		args = append(args, *f.MemberID)
		conds = append(conds, fmt.Sprintf("pr.member_id = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	conn := database.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_requests pr`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payment requests: %w", err)
	}

	query := requestSelect + where + fmt.Sprintf(` ORDER BY pr.created_at DESC, pr.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := conn.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	var requests []*PaymentRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment request: %w", err)
		}
		requests = append(requests, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payment requests: %w", err)
	}

	return requests, total, nil
}

// SaveReview writes the decision, the overridden fields and the reviewer stamp
func (r *Repository) SaveReview(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error) {
	query := `
		UPDATE payment_requests
		SET amount = $2, payment_date = $3, payment_month = $4, slot = $5, payment_type = $6,
		    sender_bank = $7, receiver_bank = $8, notes = $9, status = $10, admin_notes = $11,
		    payment_id = $12, reviewed_by = $13, reviewed_at = NOW()
		WHERE id = $1
	`

	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		pr.ID,
		pr.Amount,
		pr.PaymentDate,
		pr.PaymentMonth,
		pr.Slot,
		string(pr.PaymentType),
		pr.SenderBank,
		pr.ReceiverBank,
		pr.Notes,
		string(pr.Status),
		pr.AdminNotes,
		pr.PaymentID,
		pr.ReviewedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	return r.GetByID(ctx, pr.ID)
}
