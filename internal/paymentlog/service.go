package paymentlog

import (
	"context"

	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// Store is the persistence the payment log service depends on
type Store interface {
	Write(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
}

// Service reads and appends the payment audit trail
type Service struct {
	repo Store
}

// NewService creates a new payment log service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Write appends an entry. When ctx carries a transaction the entry commits
// or rolls back with it.
func (s *Service) Write(ctx context.Context, e *Entry) error {
	if !e.Action.Valid() {
		return apperror.Newf(apperror.KindValidation, "unknown log action %q", e.Action)
	}
	return s.repo.Write(ctx, e)
}

// List retrieves entries with pagination
func (s *Service) List(ctx context.Context, f Filter, page, perPage int) ([]*Entry, int, error) {
	if f.Action != "" && !f.Action.Valid() {
		return nil, 0, apperror.Newf(apperror.KindValidation, "unknown action %q", f.Action)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperror.New(apperror.KindValidation, "to must not be before from")
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	f.Limit = perPage
	f.Offset = (page - 1) * perPage

	return s.repo.List(ctx, f)
}
