package payment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/internal/notification"
	"github.com/fkhayef/kasmoni/internal/paymentlog"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// Common errors
var (
	ErrPaymentNotFound = apperror.New(apperror.KindNotFound, "payment not found")
	ErrGroupNotFound   = apperror.New(apperror.KindNotFound, "group not found")
	ErrMemberNotFound  = apperror.New(apperror.KindNotFound, "member not found")
	ErrNotInGroup      = apperror.New(apperror.KindInvalidAssignment, "member is not assigned to this group")
	ErrSlotNotOwned    = apperror.New(apperror.KindInvalidAssignment, "slot is not one of the member's receive months in this group")
	ErrInvalidAmount   = apperror.New(apperror.KindValidation, "amount must be greater than 0")
	ErrInvalidDate     = apperror.New(apperror.KindValidation, "payment_date must be in YYYY-MM-DD format")
	ErrAlreadyArchived = apperror.New(apperror.KindConflict, "payment is already archived")
	ErrTrashNotFound   = apperror.New(apperror.KindNotFound, "trash entry not found")
	ErrAlreadyRestored = apperror.New(apperror.KindConflict, "a live payment with the original id already exists")
)

// SlotChecker answers the slot preconditions shared by payments and
// payment requests
type SlotChecker interface {
	GroupExists(ctx context.Context, groupID int64) (bool, error)
	MemberExists(ctx context.Context, memberID int64) (bool, error)
	MemberSlots(ctx context.Context, groupID, memberID int64) ([]string, error)
}

// CheckSlot verifies, in order, that the group exists, the member exists,
// the member holds a slot in the group and slot is one of its months
func CheckSlot(ctx context.Context, c SlotChecker, groupID, memberID int64, slot string) error {
	ok, err := c.GroupExists(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}

	ok, err = c.MemberExists(ctx, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMemberNotFound
	}

	months, err := c.MemberSlots(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if len(months) == 0 {
		return ErrNotInGroup
	}
	for _, m := range months {
		if m == slot {
			return nil
		}
	}
	return ErrSlotNotOwned
}

// Store is the persistence the payment service depends on
type Store interface {
	SlotChecker
	Create(ctx context.Context, p *Payment) (*Payment, error)
	Upsert(ctx context.Context, p *Payment) (*Payment, error)
	InsertWithID(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetForUpdate(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, f Filter) ([]*Payment, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Payment, error)
	Update(ctx context.Context, p *Payment) (*Payment, error)
	Delete(ctx context.Context, id int64) (bool, error)
	InsertTrash(ctx context.Context, p *Payment, actor auth.Actor) (*TrashEntry, error)
	GetTrash(ctx context.Context, id int64) (*TrashEntry, error)
	GetTrashForUpdate(ctx context.Context, id int64) (*TrashEntry, error)
	ListTrash(ctx context.Context, limit, offset int) ([]*TrashEntry, int, error)
	DeleteTrash(ctx context.Context, id int64) (bool, error)
	ArchiveExists(ctx context.Context, originalID int64) (bool, error)
	InsertArchive(ctx context.Context, p *Payment, reason *string, actor auth.Actor) (*ArchiveEntry, error)
	ListArchive(ctx context.Context, limit, offset int) ([]*ArchiveEntry, int, error)
}

// LogWriter appends audit entries
type LogWriter interface {
	Write(ctx context.Context, e *paymentlog.Entry) error
}

// Notifier delivers a message to a member
type Notifier interface {
	Notify(ctx context.Context, memberID int64, message, entityType string, entityID int64) error
}

// Service handles the payment lifecycle
type Service struct {
	repo          Store
	tx            database.Transactor
	logs          LogWriter
	notifier      Notifier
	notifyTimeout time.Duration
}

// NewService creates a new payment service
func NewService(repo Store, tx database.Transactor, logs LogWriter, notifier Notifier, notifyTimeout time.Duration) *Service {
	if notifyTimeout <= 0 {
		notifyTimeout = 3 * time.Second
	}
	return &Service{
		repo:          repo,
		tx:            tx,
		logs:          logs,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
	}
}

// ParseDate reads a YYYY-MM-DD payment date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// CheckAmount rejects zero and negative amounts
func CheckAmount(amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

func defaultType(t Type) Type {
	if t == "" {
		return TypeCash
	}
	return t
}

func defaultStatus(s Status) Status {
	if s == "" {
		return StatusNotPaid
	}
	if parsed, ok := ParseStatus(string(s)); ok {
		return parsed
	}
	return s
}

func actorID(actor auth.Actor) *int64 {
	return nullableID(actor.ID)
}

// logBestEffort writes an audit entry outside any transaction. A failure is
// logged; the mutation it describes has already committed.
func (s *Service) logBestEffort(ctx context.Context, e *paymentlog.Entry) {
	if err := s.logs.Write(ctx, e); err != nil {
		log.Printf("[WARN] failed to write %s log for payment %v: %v", e.Action, derefID(e.PaymentID), err)
	}
}

func derefID(id *int64) any {
	if id == nil {
		return "batch"
	}
	return *id
}

// NotifyMember runs after commit with its own deadline. Errors are logged
// and never reach the caller.
func (s *Service) NotifyMember(ctx context.Context, memberID int64, message, entityType string, entityID int64) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, memberID, message, entityType, entityID); err != nil {
		log.Printf("[WARN] failed to notify member %d: %v", memberID, err)
	}
}

func imageOf(p *Payment) map[string]any {
	img, err := paymentlog.Image(p.image())
	if err != nil {
		log.Printf("[WARN] %v", err)
		return nil
	}
	return img
}

func logEntry(actor auth.Actor, action paymentlog.Action, p *Payment) *paymentlog.Entry {
	return paymentlog.NewEntry(actor, action).For(p.ID, p.GroupID, p.MemberID)
}

// Create records a single payment
func (s *Service) Create(ctx context.Context, actor auth.Actor, req *CreatePaymentRequest) (*Payment, error) {
	if err := CheckAmount(req.Amount); err != nil {
		return nil, err
	}
	date, err := ParseDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}

	if err := CheckSlot(ctx, s.repo, req.GroupID, req.MemberID, req.Slot); err != nil {
		return nil, err
	}

	p, err := s.repo.Create(ctx, &Payment{
		GroupID:      req.GroupID,
		MemberID:     req.MemberID,
		Amount:       req.Amount,
		PaymentDate:  date,
		PaymentMonth: req.PaymentMonth,
		Slot:         req.Slot,
		PaymentType:  defaultType(req.PaymentType),
		SenderBank:   req.SenderBank,
		ReceiverBank: req.ReceiverBank,
		Status:       defaultStatus(req.Status),
		Notes:        req.Notes,
		CreatedBy:    actorID(actor),
	})
	if err != nil {
		return nil, err
	}

	s.Announce(ctx, actor, p, fmt.Sprintf("A payment of %s for %s has been recorded with status %s", p.Amount.StringFixed(2), p.PaymentMonth, p.Status))

	return p, nil
}

// Record inserts an already validated payment, inside the caller's
// transaction when ctx carries one. Call Announce after commit.
func (s *Service) Record(ctx context.Context, p *Payment) (*Payment, error) {
	return s.repo.Create(ctx, p)
}

// Announce writes the created log entry and notifies the member. Both are
// best effort.
func (s *Service) Announce(ctx context.Context, actor auth.Actor, p *Payment, message string) {
	s.logBestEffort(ctx, logEntry(actor, paymentlog.ActionCreated, p).With(nil, imageOf(p)))
	s.NotifyMember(ctx, p.MemberID, message, notification.EntityPayment, p.ID)
}

// CreateBulk records payments for several members of one group and period
// in a single transaction. The first failing item aborts the batch and is
// reported with its index.
func (s *Service) CreateBulk(ctx context.Context, actor auth.Actor, req *BulkCreateRequest) ([]*Payment, error) {
	payments := make([]*Payment, 0, len(req.Items))

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, item := range req.Items {
			if err := CheckAmount(item.Amount); err != nil {
				return apperror.AtIndex(i, err)
			}
			date, err := ParseDate(item.PaymentDate)
			if err != nil {
				return apperror.AtIndex(i, err)
			}
			if err := CheckSlot(ctx, s.repo, req.GroupID, item.MemberID, item.Slot); err != nil {
				return apperror.AtIndex(i, err)
			}

			p, err := s.repo.Upsert(ctx, &Payment{
				GroupID:      req.GroupID,
				MemberID:     item.MemberID,
				Amount:       item.Amount,
				PaymentDate:  date,
				PaymentMonth: req.PaymentMonth,
				Slot:         item.Slot,
				PaymentType:  defaultType(item.PaymentType),
				SenderBank:   item.SenderBank,
				ReceiverBank: item.ReceiverBank,
				Status:       defaultStatus(item.Status),
				Notes:        item.Notes,
				CreatedBy:    actorID(actor),
			})
			if err != nil {
				return apperror.AtIndex(i, err)
			}
			payments = append(payments, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
	}
	batchID := uuid.New().String()

	entry := paymentlog.NewEntry(actor, paymentlog.ActionBulkCreated)
	groupID := req.GroupID
	entry.GroupID = &groupID
	entry.NewValues = map[string]any{
		"batch_id":      batchID,
		"count":         len(payments),
		"payment_ids":   ids,
		"payment_month": req.PaymentMonth,
	}
	entry.Details = fmt.Sprintf("batch %s: %d payments for %s", batchID, len(payments), req.PaymentMonth)
	s.logBestEffort(ctx, entry)

	notified := make(map[int64]bool)
	for _, p := range payments {
		if notified[p.MemberID] {
			continue
		}
		notified[p.MemberID] = true
		s.NotifyMember(ctx, p.MemberID, fmt.Sprintf("Your payments for %s have been recorded", req.PaymentMonth), notification.EntityPayment, p.ID)
	}

	return payments, nil
}

// GetByID retrieves a payment by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return p, nil
}

// List retrieves payments with pagination
func (s *Service) List(ctx context.Context, f Filter, page, perPage int) ([]*Payment, int, error) {
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

// SetStatus changes a payment's status. The slot is not re-validated.
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, id int64, status Status) (*Payment, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, ErrPaymentNotFound
	}

	after, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if after == nil {
		return nil, ErrPaymentNotFound
	}

	s.logBestEffort(ctx, logEntry(actor, paymentlog.ActionStatusChanged, after).With(
		map[string]any{"status": string(before.Status)},
		map[string]any{"status": string(after.Status)},
	))

	if !strings.EqualFold(string(before.Status), string(after.Status)) {
		s.NotifyMember(ctx, after.MemberID, fmt.Sprintf("Your payment for %s is now %s", after.PaymentMonth, after.Status), notification.EntityPayment, after.ID)
	}

	return after, nil
}

// BulkSetStatus changes the status of several payments in one transaction.
// Each change is logged inside the transaction.
func (s *Service) BulkSetStatus(ctx context.Context, actor auth.Actor, ids []int64, status Status) ([]*Payment, error) {
	updated := make([]*Payment, 0, len(ids))

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, id := range ids {
			before, err := s.repo.GetForUpdate(ctx, id)
			if err != nil {
				return apperror.AtIndex(i, err)
			}
			if before == nil {
				return apperror.AtIndex(i, ErrPaymentNotFound)
			}

			after, err := s.repo.UpdateStatus(ctx, id, status)
			if err != nil {
				return apperror.AtIndex(i, err)
			}

			entry := logEntry(actor, paymentlog.ActionStatusChanged, after).With(
				map[string]any{"status": string(before.Status)},
				map[string]any{"status": string(after.Status)},
			)
			if err := s.logs.Write(ctx, entry); err != nil {
				return apperror.AtIndex(i, err)
			}
			updated = append(updated, after)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Update patches a payment and re-checks the slot against the result. Only
// the changed fields are logged.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, req *UpdatePaymentRequest) (*Payment, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, ErrPaymentNotFound
	}

	next := *before
	if req.MemberID != nil {
		next.MemberID = *req.MemberID
	}
	if req.Amount != nil {
		if err := CheckAmount(*req.Amount); err != nil {
			return nil, err
		}
		next.Amount = *req.Amount
	}
	if req.PaymentDate != nil {
		date, err := ParseDate(*req.PaymentDate)
		if err != nil {
			return nil, err
		}
		next.PaymentDate = date
	}
	if req.PaymentMonth != nil {
		next.PaymentMonth = *req.PaymentMonth
	}
	if req.Slot != nil {
		next.Slot = *req.Slot
	}
	if req.PaymentType != nil {
		next.PaymentType = *req.PaymentType
	}
	if req.SenderBank != nil {
		next.SenderBank = req.SenderBank
	}
	if req.ReceiverBank != nil {
		next.ReceiverBank = req.ReceiverBank
	}
	if req.Status != nil {
		next.Status = defaultStatus(*req.Status)
	}
	if req.Notes != nil {
		next.Notes = req.Notes
	}

	if err := CheckSlot(ctx, s.repo, next.GroupID, next.MemberID, next.Slot); err != nil {
		return nil, err
	}

	after, err := s.repo.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	if after == nil {
		return nil, ErrPaymentNotFound
	}

	oldValues, newValues := paymentlog.Diff(imageOf(before), imageOf(after))
	if len(oldValues) > 0 || len(newValues) > 0 {
		s.logBestEffort(ctx, logEntry(actor, paymentlog.ActionUpdated, after).With(oldValues, newValues))
	}

	return after, nil
}

// SoftDelete moves a payment into the trashbox
func (s *Service) SoftDelete(ctx context.Context, actor auth.Actor, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPaymentNotFound
		}

		if _, err := s.repo.InsertTrash(ctx, p, actor); err != nil {
			return err
		}

		entry := logEntry(actor, paymentlog.ActionDeleted, p).With(imageOf(p), nil)
		if err := s.logs.Write(ctx, entry); err != nil {
			return err
		}

		deleted, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrPaymentNotFound
		}
		return nil
	})
}

// ListTrash retrieves soft-deleted payments
func (s *Service) ListTrash(ctx context.Context, page, perPage int) ([]*TrashEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.repo.ListTrash(ctx, perPage, (page-1)*perPage)
}

// GetTrash retrieves a trash entry by its ID
func (s *Service) GetTrash(ctx context.Context, trashID int64) (*TrashEntry, error) {
	entry, err := s.repo.GetTrash(ctx, trashID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrTrashNotFound
	}
	return entry, nil
}

// Restore moves a trash entry back into the live table under its original
// id. The slot must still be assigned to the member.
func (s *Service) Restore(ctx context.Context, actor auth.Actor, trashID int64) (*Payment, error) {
	var restored *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetTrashForUpdate(ctx, trashID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrTrashNotFound
		}

		live, err := s.repo.GetByID(ctx, entry.Payment.ID)
		if err != nil {
			return err
		}
		if live != nil {
			return ErrAlreadyRestored
		}

		p := entry.Payment
		if err := CheckSlot(ctx, s.repo, p.GroupID, p.MemberID, p.Slot); err != nil {
			return err
		}
		if err := s.repo.InsertWithID(ctx, &p); err != nil {
			return err
		}

		if err := s.logs.Write(ctx, logEntry(actor, paymentlog.ActionRestored, &p).With(nil, imageOf(&p))); err != nil {
			return err
		}

		if _, err := s.repo.DeleteTrash(ctx, trashID); err != nil {
			return err
		}
		restored = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// PurgeTrash permanently removes a trash entry
func (s *Service) PurgeTrash(ctx context.Context, actor auth.Actor, trashID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		entry, err := s.repo.GetTrashForUpdate(ctx, trashID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrTrashNotFound
		}

		e := logEntry(actor, paymentlog.ActionPermanentlyDeleted, &entry.Payment).With(imageOf(&entry.Payment), nil)
		if err := s.logs.Write(ctx, e); err != nil {
			return err
		}

		deleted, err := s.repo.DeleteTrash(ctx, trashID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTrashNotFound
		}
		return nil
	})
}

// Archive moves a payment into the archive. Archiving the same payment
// twice is a conflict.
func (s *Service) Archive(ctx context.Context, actor auth.Actor, id int64, reason *string) (*ArchiveEntry, error) {
	var entry *ArchiveEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.archiveOne(ctx, actor, id, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ArchiveBulk archives several payments in one transaction. The first
// failure aborts the batch and is reported with its index.
func (s *Service) ArchiveBulk(ctx context.Context, actor auth.Actor, ids []int64, reason *string) ([]*ArchiveEntry, error) {
	entries := make([]*ArchiveEntry, 0, len(ids))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, id := range ids {
			entry, err := s.archiveOne(ctx, actor, id, reason)
			if err != nil {
				return apperror.AtIndex(i, err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// archiveOne must run inside a transaction
func (s *Service) archiveOne(ctx context.Context, actor auth.Actor, id int64, reason *string) (*ArchiveEntry, error) {
	archived, err := s.repo.ArchiveExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, ErrAlreadyArchived
	}

	p, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}

	entry, err := s.repo.InsertArchive(ctx, p, reason, actor)
	if err != nil {
		if database.IsUniqueViolation(err, "payments_archive_original_id_key") {
			return nil, ErrAlreadyArchived
		}
		return nil, err
	}

	e := logEntry(actor, paymentlog.ActionArchived, p).With(imageOf(p), nil)
	if reason != nil {
		e.Details = *reason
	}
	if err := s.logs.Write(ctx, e); err != nil {
		return nil, err
	}

	if _, err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListArchive retrieves archived payments
func (s *Service) ListArchive(ctx context.Context, page, perPage int) ([]*ArchiveEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.repo.ListArchive(ctx, perPage, (page-1)*perPage)
}
