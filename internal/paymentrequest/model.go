package paymentrequest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/payment"
)

// Status is the review state of a payment request
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// PaymentRequest is a member-submitted payment awaiting administrator review
type PaymentRequest struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	MemberID     int64           `json:"member_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"payment_date"`
	PaymentMonth string          `json:"payment_month"`
	Slot         string          `json:"slot"`
	PaymentType  payment.Type    `json:"payment_type"`
	SenderBank   *string         `json:"sender_bank,omitempty"`
	ReceiverBank *string         `json:"receiver_bank,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	Status       Status          `json:"status"`
	AdminNotes   *string         `json:"admin_notes,omitempty"`
	PaymentID    *int64          `json:"payment_id,omitempty"`
	RequestedBy  *int64          `json:"requested_by,omitempty"`
	ReviewedBy   *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	// Populated from JOIN
	MemberName string `json:"member_name,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
}

// Filter selects payment requests
type Filter struct {
	Status   Status
	GroupID  *int64
	MemberID *int64
	Limit    int
	Offset   int
}
