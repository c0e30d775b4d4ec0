package paymentrequest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/payment"
)

// SubmitRequest is a member's claim that a payment was made. MemberID may be
// omitted by member principals.
type SubmitRequest struct {
	GroupID      int64           `json:"group_id" validate:"required,gt=0"`
	MemberID     int64           `json:"member_id" validate:"omitempty,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMonth string          `json:"payment_month" validate:"required,period"`
	Slot         string          `json:"slot" validate:"required,period"`
	PaymentType  payment.Type    `json:"payment_type" validate:"omitempty,oneof=cash bank_transfer"`
	SenderBank   *string         `json:"sender_bank,omitempty" validate:"omitempty,max=100"`
	ReceiverBank *string         `json:"receiver_bank,omitempty" validate:"omitempty,max=100"`
	Notes        *string         `json:"notes,omitempty"`
}

// ReviewRequest approves or rejects a request. Non-nil fields override the
// submitted values before a payment is created.
type ReviewRequest struct {
	Status       Status           `json:"status" validate:"required,oneof=approved rejected"`
	AdminNotes   *string          `json:"admin_notes,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	PaymentDate  *string          `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentMonth *string          `json:"payment_month,omitempty" validate:"omitempty,period"`
	Slot         *string          `json:"slot,omitempty" validate:"omitempty,period"`
	PaymentType  *payment.Type    `json:"payment_type,omitempty" validate:"omitempty,oneof=cash bank_transfer"`
	SenderBank   *string          `json:"sender_bank,omitempty" validate:"omitempty,max=100"`
	ReceiverBank *string          `json:"receiver_bank,omitempty" validate:"omitempty,max=100"`
	Notes        *string          `json:"notes,omitempty"`
}

// PaymentRequestResponse represents the response for a payment request
type PaymentRequestResponse struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	GroupName    string          `json:"group_name,omitempty"`
	MemberID     int64           `json:"member_id"`
	MemberName   string          `json:"member_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date"`
	PaymentMonth string          `json:"payment_month"`
	Slot         string          `json:"slot"`
	PaymentType  payment.Type    `json:"payment_type"`
	SenderBank   *string         `json:"sender_bank,omitempty"`
	ReceiverBank *string         `json:"receiver_bank,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	Status       Status          `json:"status"`
	AdminNotes   *string         `json:"admin_notes,omitempty"`
	PaymentID    *int64          `json:"payment_id,omitempty"`
	ReviewedBy   *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt   *string         `json:"reviewed_at,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// ToResponse converts a PaymentRequest model to its response DTO
func (pr *PaymentRequest) ToResponse() *PaymentRequestResponse {
	resp := &PaymentRequestResponse{
		ID:           pr.ID,
		GroupID:      pr.GroupID,
		GroupName:    pr.GroupName,
		MemberID:     pr.MemberID,
		MemberName:   pr.MemberName,
		Amount:       pr.Amount,
		PaymentDate:  pr.PaymentDate.Format("2006-01-02"),
		PaymentMonth: pr.PaymentMonth,
		Slot:         pr.Slot,
		PaymentType:  pr.PaymentType,
		SenderBank:   pr.SenderBank,
		ReceiverBank: pr.ReceiverBank,
		Notes:        pr.Notes,
		Status:       pr.Status,
		AdminNotes:   pr.AdminNotes,
		PaymentID:    pr.PaymentID,
		ReviewedBy:   pr.ReviewedBy,
		CreatedAt:    pr.CreatedAt.Format(time.RFC3339),
	}
	if pr.ReviewedAt != nil {
		reviewedAt := pr.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewedAt
	}
	return resp
}
