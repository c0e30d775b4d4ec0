package member

import (
	"context"
	"strings"

	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// Common errors
var (
	ErrMemberNotFound    = apperror.New(apperror.KindNotFound, "member not found")
	ErrEmailAlreadyInUse = apperror.New(apperror.KindConflict, "email already in use")
	ErrMemberHasHistory  = apperror.New(apperror.KindConflict, "member still has slots, payments or other history and cannot be deleted")
)

// Store is the persistence the member service depends on
type Store interface {
	Create(ctx context.Context, req *CreateMemberRequest) (*Member, error)
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	List(ctx context.Context, search string, limit, offset int) ([]*Member, int, error)
	Update(ctx context.Context, id int64, req *UpdateMemberRequest) (*Member, error)
	CountDependents(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Service handles member business logic
type Service struct {
	repo Store
	tx   database.Transactor
}

// NewService creates a new member service
func NewService(repo Store, tx database.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// Create registers a new member
func (s *Service) Create(ctx context.Context, req *CreateMemberRequest) (*Member, error) {
	req.Email = strings.TrimSpace(req.Email)

	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	m, err := s.repo.Create(ctx, req)
	if err != nil {
		if database.IsUniqueViolation(err, "members_email_key") {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, err
	}
	return m, nil
}

// GetByID retrieves a member by their ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Member, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// List retrieves members with pagination
func (s *Service) List(ctx context.Context, search string, page, perPage int) ([]*Member, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, strings.TrimSpace(search), perPage, offset)
}

// Update modifies an existing member
func (s *Service) Update(ctx context.Context, id int64, req *UpdateMemberRequest) (*Member, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrMemberNotFound
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, existing.Email) {
		other, err := s.repo.GetByEmail(ctx, *req.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != id {
			return nil, ErrEmailAlreadyInUse
		}
	}

	m, err := s.repo.Update(ctx, id, req)
	if err != nil {
		if database.IsUniqueViolation(err, "members_email_key") {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// Delete removes a member nothing else refers to. Dependent rows are never
// cascaded; a foreign-key failure that slips past the count is reported the
// same way.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrMemberNotFound
		}

		count, err := s.repo.CountDependents(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrMemberHasHistory
		}

		deleted, err := s.repo.Delete(ctx, id)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return ErrMemberHasHistory
			}
			return err
		}
		if !deleted {
			return ErrMemberNotFound
		}
		return nil
	})
}
