package group

import "github.com/shopspring/decimal"

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name          string          `json:"name" validate:"required,min=1,max=100"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	MaxMembers    int             `json:"max_members" validate:"required,gt=0"`
	Duration      int             `json:"duration" validate:"required,gt=0,lte=120"`
	StartMonth    string          `json:"start_month" validate:"required,period"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	MonthlyAmount *decimal.Decimal `json:"monthly_amount,omitempty"`
	MaxMembers    *int             `json:"max_members,omitempty" validate:"omitempty,gt=0"`
	Duration      *int             `json:"duration,omitempty" validate:"omitempty,gt=0,lte=120"`
	StartMonth    *string          `json:"start_month,omitempty" validate:"omitempty,period"`
}

// AddMemberRequest assigns a member to a payout month
type AddMemberRequest struct {
	MemberID     int64  `json:"member_id" validate:"required,gt=0"`
	ReceiveMonth string `json:"receive_month" validate:"required,period"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	MaxMembers    int             `json:"max_members"`
	Duration      int             `json:"duration"`
	StartMonth    string          `json:"start_month"`
	EndMonth      *string         `json:"end_month,omitempty"`
	CreatedAt     string          `json:"created_at"`
	Slots         []*SlotResponse `json:"slots,omitempty"`
}

// SlotResponse represents a slot assignment in a group response
type SlotResponse struct {
	ID           int64  `json:"id"`
	MemberID     int64  `json:"member_id"`
	MemberName   string `json:"member_name"`
	Email        string `json:"email,omitempty"`
	ReceiveMonth string `json:"receive_month"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:            g.ID,
		Name:          g.Name,
		MonthlyAmount: g.MonthlyAmount,
		MaxMembers:    g.MaxMembers,
		Duration:      g.Duration,
		StartMonth:    g.StartMonth,
		EndMonth:      g.EndMonth,
		CreatedAt:     g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a Slot model to a SlotResponse DTO
func (s *Slot) ToResponse() *SlotResponse {
	return &SlotResponse{
		ID:           s.ID,
		MemberID:     s.MemberID,
		MemberName:   s.MemberName,
		Email:        s.Email,
		ReceiveMonth: s.ReceiveMonth,
	}
}
