package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/fkhayef/kasmoni/internal/database/dbtest"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

type fakeStore struct {
	members    map[int64]*Member
	dependents map[int64]int
	deleteErr  error
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: map[int64]*Member{}, dependents: map[int64]int{}}
}

func (f *fakeStore) Create(ctx context.Context, req *CreateMemberRequest) (*Member, error) {
	f.nextID++
	m := &Member{ID: f.nextID, FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, Phone: req.Phone, CreatedAt: time.Now()}
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Member, error) {
	return f.members[id], nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (*Member, error) {
	for _, m := range f.members {
		if strings.EqualFold(m.Email, email) {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context, search string, limit, offset int) ([]*Member, int, error) {
	var out []*Member
	for _, m := range f.members {
		out = append(out, m)
	}
	return out, len(out), nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, req *UpdateMemberRequest) (*Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	if req.FirstName != nil {
		m.FirstName = *req.FirstName
	}
	if req.Email != nil {
		m.Email = *req.Email
	}
	return m, nil
}

func (f *fakeStore) CountDependents(ctx context.Context, id int64) (int, error) {
	return f.dependents[id], nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if _, ok := f.members[id]; !ok {
		return false, nil
	}
	delete(f.members, id)
	return true, nil
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, &CreateMemberRequest{FirstName: "Anouk", LastName: "Pinas", Email: "anouk@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.Create(ctx, &CreateMemberRequest{FirstName: "A", LastName: "P", Email: " ANOUK@example.com "})
	if !errors.Is(err, ErrEmailAlreadyInUse) {
		t.Fatalf("expected ErrEmailAlreadyInUse, got %v", err)
	}
	if !errors.Is(err, apperror.Conflict) {
		t.Error("duplicate email should classify as a conflict")
	}
}

func TestUpdateEmailConflict(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()

	a, _ := svc.Create(ctx, &CreateMemberRequest{FirstName: "A", LastName: "A", Email: "a@example.com"})
	svc.Create(ctx, &CreateMemberRequest{FirstName: "B", LastName: "B", Email: "b@example.com"})

	taken := "b@example.com"
	if _, err := svc.Update(ctx, a.ID, &UpdateMemberRequest{Email: &taken}); !errors.Is(err, ErrEmailAlreadyInUse) {
		t.Errorf("expected conflict, got %v", err)
	}

	name := "Ann"
	m, err := svc.Update(ctx, a.ID, &UpdateMemberRequest{FirstName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.FirstName != "Ann" || m.Email != "a@example.com" {
		t.Errorf("patch applied wrongly: %+v", m)
	}

	if _, err := svc.Update(ctx, 99, &UpdateMemberRequest{FirstName: &name}); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeleteRefusesMembersWithHistory(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()

	m, _ := svc.Create(ctx, &CreateMemberRequest{FirstName: "A", LastName: "A", Email: "a@example.com"})
	store.dependents[m.ID] = 2

	if err := svc.Delete(ctx, m.ID); !errors.Is(err, ErrMemberHasHistory) {
		t.Fatalf("expected ErrMemberHasHistory, got %v", err)
	}
	if _, ok := store.members[m.ID]; !ok {
		t.Fatal("member with dependents was deleted")
	}

	store.dependents[m.ID] = 0
	if err := svc.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, m.ID); !errors.Is(err, apperror.NotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestDeleteMapsForeignKeyFailureToConflict(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()

	m, _ := svc.Create(ctx, &CreateMemberRequest{FirstName: "A", LastName: "A", Email: "a@example.com"})
	store.deleteErr = fmt.Errorf("failed to delete member: %w", &pq.Error{Code: "23503", Constraint: "notifications_recipient_id_fkey"})

	err := svc.Delete(ctx, m.ID)
	if err != ErrMemberHasHistory {
		t.Errorf("Delete() error = %v, want %v", err, ErrMemberHasHistory)
	}
}
