package payment

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the settlement state of a payment
type Status string

const (
	StatusNotPaid  Status = "not_paid"
	StatusPending  Status = "pending"
	StatusReceived Status = "received"
	StatusSettled  Status = "settled"
)

// ParseStatus accepts any casing of a known status
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNotPaid, StatusPending, StatusReceived, StatusSettled:
		return st, true
	}
	return "", false
}

// Type is how the money moved
type Type string

const (
	TypeCash         Type = "cash"
	TypeBankTransfer Type = "bank_transfer"
)

// Payment is one member's contribution toward a slot in a billing period.
// PaymentMonth is the billing period, Slot the payout month it funds.
type Payment struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	MemberID     int64           `json:"member_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"payment_date"`
	PaymentMonth string          `json:"payment_month"`
	Slot         string          `json:"slot"`
	PaymentType  Type            `json:"payment_type"`
	SenderBank   *string         `json:"sender_bank,omitempty"`
	ReceiverBank *string         `json:"receiver_bank,omitempty"`
	Status       Status          `json:"status"`
	Notes        *string         `json:"notes,omitempty"`
	CreatedBy    *int64          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Populated from JOIN
	MemberName string `json:"member_name,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
}

// TrashEntry is a soft-deleted payment. Payment.ID holds the original id.
type TrashEntry struct {
	ID                int64     `json:"id"`
	Payment           Payment   `json:"payment"`
	DeletedByID       *int64    `json:"deleted_by_id,omitempty"`
	DeletedByUsername string    `json:"deleted_by_username"`
	DeletedAt         time.Time `json:"deleted_at"`
}

// ArchiveEntry is an archived payment. Payment.ID holds the original id.
type ArchiveEntry struct {
	ID                 int64     `json:"id"`
	Payment            Payment   `json:"payment"`
	ArchiveReason      *string   `json:"archive_reason,omitempty"`
	ArchivedByID       *int64    `json:"archived_by_id,omitempty"`
	ArchivedByUsername string    `json:"archived_by_username"`
	ArchivedAt         time.Time `json:"archived_at"`
}

// Filter selects live payments
type Filter struct {
	GroupID      *int64
	MemberID     *int64
	PaymentMonth string
	Slot         string
	Status       Status
	Limit        int
	Offset       int
}
