package group

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group represents a rotating savings pool. EndMonth is derived from
// StartMonth and Duration whenever either changes and is stored.
type Group struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	MaxMembers    int             `json:"max_members"`
	Duration      int             `json:"duration"`
	StartMonth    string          `json:"start_month"`
	EndMonth      *string         `json:"end_month,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ActiveIn reports whether period p falls within the group's run
func (g *Group) ActiveIn(p string) bool {
	if p < g.StartMonth {
		return false
	}
	return g.EndMonth == nil || p <= *g.EndMonth
}

// Slot is one payout turn: a member assigned to receive in ReceiveMonth
type Slot struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	MemberID     int64     `json:"member_id"`
	ReceiveMonth string    `json:"receive_month"`
	CreatedAt    time.Time `json:"created_at"`

	// Populated from JOIN
	MemberName string `json:"member_name,omitempty"`
	Email      string `json:"email,omitempty"`
}
