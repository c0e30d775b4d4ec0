package paymentrequest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/database/dbtest"
	"github.com/fkhayef/kasmoni/internal/payment"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

type fakeStore struct {
	requests map[int64]*PaymentRequest
	nextID   int64
}

func (f *fakeStore) Create(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error) {
	f.nextID++
	cp := *pr
	cp.ID = f.nextID
	cp.Status = StatusPendingApproval
	cp.CreatedAt = time.Now()
	f.requests[cp.ID] = &cp
	return f.GetByID(ctx, cp.ID)
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*PaymentRequest, error) {
	pr, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *pr
	return &cp, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id int64) (*PaymentRequest, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) PendingExists(ctx context.Context, groupID, memberID int64, slot, paymentMonth string) (bool, error) {
	for _, pr := range f.requests {
		if pr.Status == StatusPendingApproval && pr.GroupID == groupID && pr.MemberID == memberID &&
			pr.Slot == slot && pr.PaymentMonth == paymentMonth {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) List(ctx context.Context, filter Filter) ([]*PaymentRequest, int, error) {
	var out []*PaymentRequest
	for _, pr := range f.requests {
		if filter.MemberID != nil && pr.MemberID != *filter.MemberID {
			continue
		}
		out = append(out, pr)
	}
	return out, len(out), nil
}

func (f *fakeStore) SaveReview(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error) {
	cp := *pr
	now := time.Now()
	cp.ReviewedAt = &now
	f.requests[cp.ID] = &cp
	return f.GetByID(ctx, cp.ID)
}

type fakeSlots struct{}

func (fakeSlots) GroupExists(ctx context.Context, id int64) (bool, error)  { return id == 1, nil }
func (fakeSlots) MemberExists(ctx context.Context, id int64) (bool, error) { return id == 10 || id == 11, nil }

func (fakeSlots) MemberSlots(ctx context.Context, groupID, memberID int64) ([]string, error) {
	if groupID == 1 && memberID == 10 {
		return []string{"2025-03"}, nil
	}
	return nil, nil
}

type fakePayments struct {
	recorded  []*payment.Payment
	announced []string
	notified  []string
	failWith  error
}

func (f *fakePayments) Record(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	cp := *p
	cp.ID = int64(100 + len(f.recorded))
	f.recorded = append(f.recorded, &cp)
	return &cp, nil
}

func (f *fakePayments) Announce(ctx context.Context, actor auth.Actor, p *payment.Payment, message string) {
	f.announced = append(f.announced, message)
}

func (f *fakePayments) NotifyMember(ctx context.Context, memberID int64, message, entityType string, entityID int64) {
	f.notified = append(f.notified, fmt.Sprintf("%s:%d", entityType, entityID))
}

type fixture struct {
	store    *fakeStore
	payments *fakePayments
	tx       *dbtest.Transactor
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:    &fakeStore{requests: map[int64]*PaymentRequest{}},
		payments: &fakePayments{},
		tx:       &dbtest.Transactor{},
	}
	f.tx.Snapshot = func() func() {
		saved := map[int64]*PaymentRequest{}
		for id, pr := range f.store.requests {
			cp := *pr
			saved[id] = &cp
		}
		return func() { f.store.requests = saved }
	}
	f.svc = NewService(f.store, f.tx, fakeSlots{}, f.payments)
	return f
}

func memberPrincipal(memberID int64) *auth.Principal {
	return &auth.Principal{ID: 50, Username: "member", UserType: auth.UserTypeMember, MemberID: &memberID}
}

var admin = auth.Actor{Principal: auth.Principal{ID: 1, Username: "admin", Role: auth.RoleAdministrator, UserType: auth.UserTypeAdmin}}

func submitReq() *SubmitRequest {
	return &SubmitRequest{
		GroupID:      1,
		Amount:       decimal.NewFromInt(500),
		PaymentDate:  "2025-03-05",
		PaymentMonth: "2025-03",
		Slot:         "2025-03",
	}
}

func TestSubmitUsesPrincipalMember(t *testing.T) {
	f := newFixture()

	pr, err := f.svc.Submit(context.Background(), memberPrincipal(10), submitReq())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if pr.MemberID != 10 || pr.Status != StatusPendingApproval {
		t.Errorf("got member %d status %s", pr.MemberID, pr.Status)
	}
	if pr.PaymentType != payment.TypeCash {
		t.Errorf("PaymentType = %s, want cash", pr.PaymentType)
	}
}

func TestSubmitRejections(t *testing.T) {
	readOnly := &auth.Principal{ID: 2, Role: auth.RoleNormalUser, UserType: auth.UserTypeAdmin}
	writer := &admin.Principal

	tests := []struct {
		name      string
		principal *auth.Principal
		mutate    func(*SubmitRequest)
		want      error
	}{
		{"member for another member", memberPrincipal(10), func(r *SubmitRequest) { r.MemberID = 11 }, ErrNotOwnMember},
		{"read-only admin", readOnly, func(r *SubmitRequest) { r.MemberID = 10 }, ErrReadOnly},
		{"admin without member", writer, func(r *SubmitRequest) {}, ErrMemberRequired},
		{"zero amount", memberPrincipal(10), func(r *SubmitRequest) { r.Amount = decimal.Zero }, payment.ErrInvalidAmount},
		{"slot not owned", memberPrincipal(10), func(r *SubmitRequest) { r.Slot = "2025-04" }, payment.ErrSlotNotOwned},
		{"not in group", memberPrincipal(11), func(r *SubmitRequest) {}, payment.ErrNotInGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := submitReq()
			tt.mutate(req)
			_, err := f.svc.Submit(context.Background(), tt.principal, req)
			if err != tt.want {
				t.Errorf("Submit() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmitDuplicatePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, memberPrincipal(10), submitReq()); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := f.svc.Submit(ctx, memberPrincipal(10), submitReq())
	if !errors.Is(err, apperror.Conflict) {
		t.Errorf("second Submit() error = %v, want conflict", err)
	}
}

func TestReviewApproveWithOverride(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pr, _ := f.svc.Submit(ctx, memberPrincipal(10), submitReq())

	override := decimal.NewFromInt(600)
	reviewed, err := f.svc.Review(ctx, admin, pr.ID, &ReviewRequest{Status: StatusApproved, Amount: &override})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if len(f.payments.recorded) != 1 {
		t.Fatalf("recorded %d payments, want 1", len(f.payments.recorded))
	}
	p := f.payments.recorded[0]
	if p.Status != payment.StatusPending || !p.Amount.Equal(override) {
		t.Errorf("payment status %s amount %s", p.Status, p.Amount)
	}
	if reviewed.PaymentID == nil || *reviewed.PaymentID != p.ID {
		t.Errorf("PaymentID = %v, want %d", reviewed.PaymentID, p.ID)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != admin.ID || reviewed.ReviewedAt == nil {
		t.Errorf("review not stamped: by=%v at=%v", reviewed.ReviewedBy, reviewed.ReviewedAt)
	}
	if len(f.payments.announced) != 1 {
		t.Errorf("announced %d times, want 1", len(f.payments.announced))
	}

	_, err = f.svc.Review(ctx, admin, pr.ID, &ReviewRequest{Status: StatusRejected})
	if err != ErrAlreadyReviewed {
		t.Errorf("second Review() error = %v, want %v", err, ErrAlreadyReviewed)
	}
	if len(f.payments.recorded) != 1 {
		t.Errorf("second review created a payment")
	}
}

func TestReviewReject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pr, _ := f.svc.Submit(ctx, memberPrincipal(10), submitReq())

	reviewed, err := f.svc.Review(ctx, admin, pr.ID, &ReviewRequest{Status: StatusRejected})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if reviewed.Status != StatusRejected || reviewed.PaymentID != nil {
		t.Errorf("got status %s payment %v", reviewed.Status, reviewed.PaymentID)
	}
	if len(f.payments.recorded) != 0 {
		t.Errorf("rejection created a payment")
	}
	if want := fmt.Sprintf("PAYMENT_REQUEST:%d", pr.ID); len(f.payments.notified) != 1 || f.payments.notified[0] != want {
		t.Errorf("notified = %v, want [%s]", f.payments.notified, want)
	}
}

func TestReviewRollsBackOnPaymentFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pr, _ := f.svc.Submit(ctx, memberPrincipal(10), submitReq())
	f.payments.failWith = errors.New("insert failed")

	if _, err := f.svc.Review(ctx, admin, pr.ID, &ReviewRequest{Status: StatusApproved}); err == nil {
		t.Fatal("Review() error = nil")
	}

	got, _ := f.svc.GetByID(ctx, pr.ID)
	if got.Status != StatusPendingApproval || got.ReviewedBy != nil {
		t.Errorf("request changed after rollback: %+v", got)
	}
	if f.tx.Rollbacks != 1 {
		t.Errorf("Rollbacks = %d, want 1", f.tx.Rollbacks)
	}
	if len(f.payments.announced)+len(f.payments.notified) != 0 {
		t.Errorf("notified after a failed review")
	}
}

func TestReviewUnknown(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Review(context.Background(), admin, 99, &ReviewRequest{Status: StatusApproved})
	if err != ErrRequestNotFound {
		t.Errorf("Review() error = %v, want %v", err, ErrRequestNotFound)
	}
}
