package member

import "time"

// Member represents a participant of one or more savings groups
type Member struct {
	ID            int64     `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Phone         *string   `json:"phone,omitempty"`
	Address       *string   `json:"address,omitempty"`
	Nationality   *string   `json:"nationality,omitempty"`
	BankName      *string   `json:"bank_name,omitempty"`
	AccountNumber *string   `json:"account_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullName joins first and last name
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}
