package member

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fkhayef/kasmoni/internal/database"
)

const memberColumns = `id, first_name, last_name, email, phone, address, nationality, bank_name, account_number, created_at, updated_at`

// Repository handles member data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new member repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(s scanner) (*Member, error) {
	m := &Member{}
	err := s.Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.Email,
		&m.Phone,
		&m.Address,
		&m.Nationality,
		&m.BankName,
		&m.AccountNumber,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

// Create inserts a new member into the database
func (r *Repository) Create(ctx context.Context, req *CreateMemberRequest) (*Member, error) {
	query := `
		INSERT INTO members (first_name, last_name, email, phone, address, nationality, bank_name, account_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + memberColumns

	m, err := scanMember(database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		req.FirstName,
		req.LastName,
		req.Email,
		req.Phone,
		req.Address,
		req.Nationality,
		req.BankName,
		req.AccountNumber,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	return m, nil
}

// GetByID retrieves a member by their ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	m, err := scanMember(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

// GetByEmail retrieves a member by their email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE LOWER(email) = LOWER($1)`

	m, err := scanMember(database.Conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}

	return m, nil
}

// List retrieves members with an optional name/email search
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]*Member, int, error) {
	pattern := "%" + search + "%"
	where := `WHERE ($1 = '' OR first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)`

	var total int
	countQuery := `SELECT COUNT(*) FROM members ` + where
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, countQuery, search, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	query := `SELECT ` + memberColumns + ` FROM members ` + where + `
		ORDER BY last_name, first_name
		LIMIT $3 OFFSET $4`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}

	return members, total, nil
}

// Update modifies an existing member
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateMemberRequest) (*Member, error) {
	query := `
		UPDATE members
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    email = COALESCE($4, email),
		    phone = COALESCE($5, phone),
		    address = COALESCE($6, address),
		    nationality = COALESCE($7, nationality),
		    bank_name = COALESCE($8, bank_name),
		    account_number = COALESCE($9, account_number),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + memberColumns

	m, err := scanMember(database.Conn(ctx, r.db).QueryRowContext(ctx, query,
		id,
		req.FirstName,
		req.LastName,
		req.Email,
		req.Phone,
		req.Address,
		req.Nationality,
		req.BankName,
		req.AccountNumber,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return m, nil
}

// dependents lists every table column that refers to a member. A member
// with a row in any of them is not deleted.
var dependents = []struct{ table, column string }{
	{"group_members", "member_id"},
	{"payments", "member_id"},
	{"payments_trashbox", "member_id"},
	{"payment_requests", "member_id"},
	{"notifications", "recipient_id"},
}

func countDependentsQuery() string {
	parts := make([]string, len(dependents))
	for i, d := range dependents {
		parts[i] = fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s = $1)", d.table, d.column)
	}
	return "SELECT " + strings.Join(parts, " + ")
}

// CountDependents counts the rows in other tables that reference a member
func (r *Repository) CountDependents(ctx context.Context, id int64) (int, error) {
	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, countDependentsQuery(), id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count member dependents: %w", err)
	}
	return count, nil
}

// Delete removes a member from the database
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM members WHERE id = $1`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
