package status

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupStatus is the derived payment state of a group for one period
type GroupStatus string

const (
	FullyPaid GroupStatus = "fully_paid"
	Pending   GroupStatus = "pending"
	NotPaid   GroupStatus = "not_paid"
)

// PaymentRow is the slice of a payment the engine classifies on
type PaymentRow struct {
	ID       int64
	GroupID  int64
	MemberID int64
	Slot     string
	Status   string
	Amount   decimal.Decimal
}

// GroupState is one group's derived status for a period
type GroupState struct {
	GroupID       int64           `json:"group_id"`
	Name          string          `json:"name"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	StartMonth    string          `json:"start_month"`
	EndMonth      *string         `json:"end_month,omitempty"`
	Period        string          `json:"period"`
	Status        GroupStatus     `json:"status"`
	SlotCount     int             `json:"slot_count"`
	PaidCount     int             `json:"paid_count"`
	Recipient     *Recipient      `json:"recipient,omitempty"`
}

// Recipient is the member scheduled to receive a group's payout in a period
type Recipient struct {
	GroupID      int64           `json:"group_id"`
	SlotID       int64           `json:"slot_id"`
	MemberID     int64           `json:"member_id"`
	MemberName   string          `json:"member_name"`
	ReceiveMonth string          `json:"receive_month"`
	Payout       decimal.Decimal `json:"payout"`
}

// GridRow is the latest payment state of one slot for a period
type GridRow struct {
	SlotID       int64           `json:"slot_id"`
	MemberID     int64           `json:"member_id"`
	MemberName   string          `json:"member_name"`
	ReceiveMonth string          `json:"receive_month"`
	PaymentID    *int64          `json:"payment_id,omitempty"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	IsRecipient  bool            `json:"is_recipient"`
}

// Totals holds the aggregate figures read straight from the store
type Totals struct {
	ActiveGroups  int
	TotalMembers  int
	TotalExpected decimal.Decimal
	Received      decimal.Decimal
	Pending       decimal.Decimal
	Settled       decimal.Decimal
}

// Dashboard is the period summary shown on the admin landing page.
// TotalPaid adds received, pending and settled amounts together.
type Dashboard struct {
	Period        string              `json:"period"`
	ActiveGroups  int                 `json:"active_groups"`
	TotalMembers  int                 `json:"total_members"`
	TotalExpected decimal.Decimal     `json:"total_expected"`
	TotalPaid     decimal.Decimal     `json:"total_paid"`
	Received      decimal.Decimal     `json:"received"`
	Pending       decimal.Decimal     `json:"pending"`
	Settled       decimal.Decimal     `json:"settled"`
	OverdueCount  int                 `json:"overdue_count"`
	OverdueAfter  time.Time           `json:"overdue_after"`
	StatusCounts  map[GroupStatus]int `json:"status_counts"`
}
