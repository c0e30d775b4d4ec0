package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// CreatePaymentRequest represents the request to record a payment
type CreatePaymentRequest struct {
	GroupID      int64           `json:"group_id" validate:"required,gt=0"`
	MemberID     int64           `json:"member_id" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMonth string          `json:"payment_month" validate:"required,period"`
	Slot         string          `json:"slot" validate:"required,period"`
	PaymentType  Type            `json:"payment_type" validate:"omitempty,oneof=cash bank_transfer"`
	SenderBank   *string         `json:"sender_bank,omitempty" validate:"omitempty,max=100"`
	ReceiverBank *string         `json:"receiver_bank,omitempty" validate:"omitempty,max=100"`
	Status       Status          `json:"status" validate:"omitempty,oneof=not_paid pending received settled"`
	Notes        *string         `json:"notes,omitempty"`
}

// BulkItem is one row of a bulk create for a single group and period
type BulkItem struct {
	MemberID     int64           `json:"member_id" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Slot         string          `json:"slot" validate:"required,period"`
	PaymentType  Type            `json:"payment_type" validate:"omitempty,oneof=cash bank_transfer"`
	SenderBank   *string         `json:"sender_bank,omitempty" validate:"omitempty,max=100"`
	ReceiverBank *string         `json:"receiver_bank,omitempty" validate:"omitempty,max=100"`
	Status       Status          `json:"status" validate:"omitempty,oneof=not_paid pending received settled"`
	Notes        *string         `json:"notes,omitempty"`
}

// BulkCreateRequest records payments for many members of one group at once
type BulkCreateRequest struct {
	GroupID      int64       `json:"group_id" validate:"required,gt=0"`
	PaymentMonth string      `json:"payment_month" validate:"required,period"`
	Items        []*BulkItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest changes a payment's status
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=not_paid pending received settled"`
}

// BulkStatusRequest changes the status of several payments
type BulkStatusRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Status Status  `json:"status" validate:"required,oneof=not_paid pending received settled"`
}

// UpdatePaymentRequest patches a payment; nil fields are left alone
type UpdatePaymentRequest struct {
	MemberID     *int64           `json:"member_id,omitempty" validate:"omitempty,gt=0"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	PaymentDate  *string          `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentMonth *string          `json:"payment_month,omitempty" validate:"omitempty,period"`
	Slot         *string          `json:"slot,omitempty" validate:"omitempty,period"`
	PaymentType  *Type            `json:"payment_type,omitempty" validate:"omitempty,oneof=cash bank_transfer"`
	SenderBank   *string          `json:"sender_bank,omitempty" validate:"omitempty,max=100"`
	ReceiverBank *string          `json:"receiver_bank,omitempty" validate:"omitempty,max=100"`
	Status       *Status          `json:"status,omitempty" validate:"omitempty,oneof=not_paid pending received settled"`
	Notes        *string          `json:"notes,omitempty"`
}

// ArchiveRequest carries the optional archive reason
type ArchiveRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// BulkArchiveRequest archives several payments
type BulkArchiveRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// PaymentResponse represents the response for a payment
type PaymentResponse struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	GroupName    string          `json:"group_name,omitempty"`
	MemberID     int64           `json:"member_id"`
	MemberName   string          `json:"member_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date"`
	PaymentMonth string          `json:"payment_month"`
	Slot         string          `json:"slot"`
	PaymentType  Type            `json:"payment_type"`
	SenderBank   *string         `json:"sender_bank,omitempty"`
	ReceiverBank *string         `json:"receiver_bank,omitempty"`
	Status       Status          `json:"status"`
	Notes        *string         `json:"notes,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// ToResponse converts a Payment model to a PaymentResponse DTO
func (p *Payment) ToResponse() *PaymentResponse {
	return &PaymentResponse{
		ID:           p.ID,
		GroupID:      p.GroupID,
		GroupName:    p.GroupName,
		MemberID:     p.MemberID,
		MemberName:   p.MemberName,
		Amount:       p.Amount,
		PaymentDate:  p.PaymentDate.Format(dateLayout),
		PaymentMonth: p.PaymentMonth,
		Slot:         p.Slot,
		PaymentType:  p.PaymentType,
		SenderBank:   p.SenderBank,
		ReceiverBank: p.ReceiverBank,
		Status:       p.Status,
		Notes:        p.Notes,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

// auditImage is the row image stored in payment logs
type auditImage struct {
	GroupID      int64           `json:"group_id"`
	MemberID     int64           `json:"member_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date"`
	PaymentMonth string          `json:"payment_month"`
	Slot         string          `json:"slot"`
	PaymentType  Type            `json:"payment_type"`
	SenderBank   *string         `json:"sender_bank"`
	ReceiverBank *string         `json:"receiver_bank"`
	Status       Status          `json:"status"`
	Notes        *string         `json:"notes"`
}

func (p *Payment) image() auditImage {
	return auditImage{
		GroupID:      p.GroupID,
		MemberID:     p.MemberID,
		Amount:       p.Amount,
		PaymentDate:  p.PaymentDate.Format(dateLayout),
		PaymentMonth: p.PaymentMonth,
		Slot:         p.Slot,
		PaymentType:  p.PaymentType,
		SenderBank:   p.SenderBank,
		ReceiverBank: p.ReceiverBank,
		Status:       p.Status,
		Notes:        p.Notes,
	}
}
