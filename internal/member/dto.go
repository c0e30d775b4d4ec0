package member

// CreateMemberRequest represents the request body for registering a member
type CreateMemberRequest struct {
	FirstName     string  `json:"first_name" validate:"required,min=1,max=100"`
	LastName      string  `json:"last_name" validate:"required,min=1,max=100"`
	Email         string  `json:"email" validate:"required,email"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address       *string `json:"address,omitempty"`
	Nationality   *string `json:"nationality,omitempty" validate:"omitempty,max=100"`
	BankName      *string `json:"bank_name,omitempty" validate:"omitempty,max=100"`
	AccountNumber *string `json:"account_number,omitempty" validate:"omitempty,max=100"`
}

// UpdateMemberRequest represents the request body for editing a member.
// Only fields present in the body are changed.
type UpdateMemberRequest struct {
	FirstName     *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName      *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address       *string `json:"address,omitempty"`
	Nationality   *string `json:"nationality,omitempty" validate:"omitempty,max=100"`
	BankName      *string `json:"bank_name,omitempty" validate:"omitempty,max=100"`
	AccountNumber *string `json:"account_number,omitempty" validate:"omitempty,max=100"`
}

// MemberResponse represents the response for a single member
type MemberResponse struct {
	ID            int64   `json:"id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Phone         *string `json:"phone,omitempty"`
	Address       *string `json:"address,omitempty"`
	Nationality   *string `json:"nationality,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// ToResponse converts a Member model to a MemberResponse DTO
func (m *Member) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:            m.ID,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		FullName:      m.FullName(),
		Email:         m.Email,
		Phone:         m.Phone,
		Address:       m.Address,
		Nationality:   m.Nationality,
		BankName:      m.BankName,
		AccountNumber: m.AccountNumber,
		CreatedAt:     m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
