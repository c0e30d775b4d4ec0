package paymentrequest

import (
	"context"
	"fmt"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/internal/notification"
	"github.com/fkhayef/kasmoni/internal/payment"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// Common errors
var (
	ErrRequestNotFound  = apperror.New(apperror.KindNotFound, "payment request not found")
	ErrAlreadyReviewed  = apperror.New(apperror.KindConflict, "payment request has already been reviewed")
	ErrDuplicatePending = apperror.New(apperror.KindConflict, "a payment request for this slot and month is already awaiting approval")
	ErrNotOwnMember     = apperror.New(apperror.KindForbidden, "members can only submit payment requests for themselves")
	ErrReadOnly         = apperror.New(apperror.KindForbidden, "you do not have permission to submit payment requests")
	ErrMemberRequired   = apperror.New(apperror.KindValidation, "member_id is required")
)

// Store is the persistence the payment request service depends on
type Store interface {
	Create(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error)
	GetByID(ctx context.Context, id int64) (*PaymentRequest, error)
	GetForUpdate(ctx context.Context, id int64) (*PaymentRequest, error)
	PendingExists(ctx context.Context, groupID, memberID int64, slot, paymentMonth string) (bool, error)
	List(ctx context.Context, f Filter) ([]*PaymentRequest, int, error)
	SaveReview(ctx context.Context, pr *PaymentRequest) (*PaymentRequest, error)
}

// Payments is the slice of the payment lifecycle an approval needs
type Payments interface {
	Record(ctx context.Context, p *payment.Payment) (*payment.Payment, error)
	Announce(ctx context.Context, actor auth.Actor, p *payment.Payment, message string)
	NotifyMember(ctx context.Context, memberID int64, message, entityType string, entityID int64)
}

// Service handles payment request business logic
type Service struct {
	repo     Store
	tx       database.Transactor
	slots    payment.SlotChecker
	payments Payments
}

// NewService creates a new payment request service
func NewService(repo Store, tx database.Transactor, slots payment.SlotChecker, payments Payments) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		slots:    slots,
		payments: payments,
	}
}

// Submit files a new request. Members may only submit for themselves;
// administrators with write access may submit on a member's behalf.
func (s *Service) Submit(ctx context.Context, principal *auth.Principal, req *SubmitRequest) (*PaymentRequest, error) {
	memberID := req.MemberID
	switch {
	case principal.IsMember():
		if memberID == 0 && principal.MemberID != nil {
			memberID = *principal.MemberID
		}
		if !principal.OwnsMember(memberID) {
			return nil, ErrNotOwnMember
		}
	case !principal.CanWrite():
		return nil, ErrReadOnly
	case memberID == 0:
		return nil, ErrMemberRequired
	}

	if err := payment.CheckAmount(req.Amount); err != nil {
		return nil, err
	}
	date, err := payment.ParseDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}

	if err := payment.CheckSlot(ctx, s.slots, req.GroupID, memberID, req.Slot); err != nil {
		return nil, err
	}

	pending, err := s.repo.PendingExists(ctx, req.GroupID, memberID, req.Slot, req.PaymentMonth)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = payment.TypeCash
	}

	requestedBy := principal.ID
	pr, err := s.repo.Create(ctx, &PaymentRequest{
		GroupID:      req.GroupID,
		MemberID:     memberID,
		Amount:       req.Amount,
		PaymentDate:  date,
		PaymentMonth: req.PaymentMonth,
		Slot:         req.Slot,
		PaymentType:  paymentType,
		SenderBank:   req.SenderBank,
		ReceiverBank: req.ReceiverBank,
		Notes:        req.Notes,
		RequestedBy:  &requestedBy,
	})
	if err != nil {
		if database.IsUniqueViolation(err, "payment_requests_pending_key") {
			return nil, ErrDuplicatePending
		}
		return nil, err
	}

	return pr, nil
}

// Review approves or rejects a pending request in one transaction. An
// approval creates exactly one payment, in status pending, from the request
// with the reviewer's overrides applied.
func (s *Service) Review(ctx context.Context, actor auth.Actor, id int64, req *ReviewRequest) (*PaymentRequest, error) {
	var (
		reviewed *PaymentRequest
		created  *payment.Payment
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		pr, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if pr == nil {
			return ErrRequestNotFound
		}
		if pr.Status != StatusPendingApproval {
			return ErrAlreadyReviewed
		}

		if err := applyOverrides(pr, req); err != nil {
			return err
		}

		pr.Status = req.Status
		pr.AdminNotes = req.AdminNotes
		reviewer := actor.ID
		pr.ReviewedBy = &reviewer

		if req.Status == StatusApproved {
			if err := payment.CheckSlot(ctx, s.slots, pr.GroupID, pr.MemberID, pr.Slot); err != nil {
				return err
			}

			created, err = s.payments.Record(ctx, &payment.Payment{
				GroupID:      pr.GroupID,
				MemberID:     pr.MemberID,
				Amount:       pr.Amount,
				PaymentDate:  pr.PaymentDate,
				PaymentMonth: pr.PaymentMonth,
				Slot:         pr.Slot,
				PaymentType:  pr.PaymentType,
				SenderBank:   pr.SenderBank,
				ReceiverBank: pr.ReceiverBank,
				Status:       payment.StatusPending,
				Notes:        pr.Notes,
				CreatedBy:    &reviewer,
			})
			if err != nil {
				return err
			}
			pr.PaymentID = &created.ID
		}

		reviewed, err = s.repo.SaveReview(ctx, pr)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created != nil {
		s.payments.Announce(ctx, actor, created,
			fmt.Sprintf("Your payment request for %s was approved", reviewed.PaymentMonth))
	} else {
		s.payments.NotifyMember(ctx, reviewed.MemberID,
			fmt.Sprintf("Your payment request for %s was rejected", reviewed.PaymentMonth),
			notification.EntityPaymentRequest, reviewed.ID)
	}

	return reviewed, nil
}

func applyOverrides(pr *PaymentRequest, req *ReviewRequest) error {
	if req.Amount != nil {
		if err := payment.CheckAmount(*req.Amount); err != nil {
			return err
		}
		pr.Amount = *req.Amount
	}
	if req.PaymentDate != nil {
		date, err := payment.ParseDate(*req.PaymentDate)
		if err != nil {
			return err
		}
		pr.PaymentDate = date
	}
	if req.PaymentMonth != nil {
		pr.PaymentMonth = *req.PaymentMonth
	}
	if req.Slot != nil {
		pr.Slot = *req.Slot
	}
	if req.PaymentType != nil {
		pr.PaymentType = *req.PaymentType
	}
	if req.SenderBank != nil {
		pr.SenderBank = req.SenderBank
	}
	if req.ReceiverBank != nil {
		pr.ReceiverBank = req.ReceiverBank
	}
	if req.Notes != nil {
		pr.Notes = req.Notes
	}
	return nil
}

// GetByID retrieves a payment request by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*PaymentRequest, error) {
	pr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, ErrRequestNotFound
	}
	return pr, nil
}

// List retrieves payment requests with pagination
func (s *Service) List(ctx context.Context, f Filter, page, perPage int) ([]*PaymentRequest, int, error) {
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

// ListForMember retrieves one member's requests
func (s *Service) ListForMember(ctx context.Context, memberID int64, page, perPage int) ([]*PaymentRequest, int, error) {
	return s.List(ctx, Filter{MemberID: &memberID}, page, perPage)
}
