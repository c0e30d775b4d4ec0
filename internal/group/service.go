package group

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/database"
	"github.com/fkhayef/kasmoni/pkg/apperror"
	"github.com/fkhayef/kasmoni/pkg/period"
)

// Common errors
var (
	ErrGroupNotFound     = apperror.New(apperror.KindNotFound, "group not found")
	ErrMemberNotFound    = apperror.New(apperror.KindNotFound, "member not found")
	ErrSlotNotFound      = apperror.New(apperror.KindNotFound, "slot not found")
	ErrGroupFull         = apperror.New(apperror.KindInvalidAssignment, "group is full: every available month is already assigned")
	ErrInvalidAmount     = apperror.New(apperror.KindValidation, "monthly_amount must be greater than 0")
	ErrGroupHasHistory   = apperror.New(apperror.KindConflict, "group still has slots, payments or requests and cannot be deleted")
	ErrSlotHasPayments   = apperror.New(apperror.KindConflict, "slot has recorded payments and cannot be removed")
	ErrMonthOutsideGroup = apperror.New(apperror.KindInvalidAssignment, "receive month is outside the group's duration")
)

// Store is the persistence the group service depends on
type Store interface {
	Create(ctx context.Context, g *Group) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	GetForUpdate(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context, limit, offset int) ([]*Group, int, error)
	ListByMemberID(ctx context.Context, memberID int64) ([]*Group, error)
	Update(ctx context.Context, g *Group) (*Group, error)
	CountDependents(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
	MemberName(ctx context.Context, memberID int64) (string, bool, error)
	ListSlots(ctx context.Context, groupID int64) ([]*Slot, error)
	GetSlot(ctx context.Context, groupID, slotID int64) (*Slot, error)
	SlotByMonth(ctx context.Context, groupID int64, month string) (*Slot, error)
	CountDistinctMonths(ctx context.Context, groupID int64) (int, error)
	AddSlot(ctx context.Context, groupID, memberID int64, month string) (*Slot, error)
	CountSlotPayments(ctx context.Context, groupID, memberID int64, month string) (int, error)
	RemoveSlot(ctx context.Context, slotID int64) (bool, error)
	MonthsOutside(ctx context.Context, groupID int64, start, end string) ([]string, error)
}

// Service handles group business logic
type Service struct {
	repo Store
	tx   database.Transactor
}

// NewService creates a new group service
func NewService(repo Store, tx database.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// Create creates a new group and stores its derived end month
func (s *Service) Create(ctx context.Context, req *CreateGroupRequest) (*Group, error) {
	if !req.MonthlyAmount.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	end, err := period.End(req.StartMonth, req.Duration)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	return s.repo.Create(ctx, &Group{
		Name:          strings.TrimSpace(req.Name),
		MonthlyAmount: req.MonthlyAmount,
		MaxMembers:    req.MaxMembers,
		Duration:      req.Duration,
		StartMonth:    req.StartMonth,
		EndMonth:      &end,
	})
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// GetByIDWithSlots retrieves a group with all its slot assignments
func (s *Service) GetByIDWithSlots(ctx context.Context, id int64) (*Group, []*Slot, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	slots, err := s.repo.ListSlots(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return g, slots, nil
}

// List retrieves groups with pagination
func (s *Service) List(ctx context.Context, page, perPage int) ([]*Group, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, perPage, offset)
}

// ListByMemberID retrieves the groups a member participates in
func (s *Service) ListByMemberID(ctx context.Context, memberID int64) ([]*Group, error) {
	return s.repo.ListByMemberID(ctx, memberID)
}

// Update patches a group. Start month or duration changes recompute the end
// month, and are refused if they would orphan assigned slots.
func (s *Service) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	var updated *Group
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		if req.Name != nil {
			g.Name = strings.TrimSpace(*req.Name)
		}
		if req.MonthlyAmount != nil {
			if !req.MonthlyAmount.GreaterThan(decimal.Zero) {
				return ErrInvalidAmount
			}
			g.MonthlyAmount = *req.MonthlyAmount
		}
		if req.StartMonth != nil {
			g.StartMonth = *req.StartMonth
		}
		if req.Duration != nil {
			g.Duration = *req.Duration
		}
		end, err := period.End(g.StartMonth, g.Duration)
		if err != nil {
			return apperror.Wrap(apperror.KindValidation, err.Error(), err)
		}
		g.EndMonth = &end

		orphans, err := s.repo.MonthsOutside(ctx, id, g.StartMonth, end)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			return apperror.Newf(apperror.KindInvalidAssignment,
				"assigned months %s would fall outside %s to %s", strings.Join(orphans, ", "), g.StartMonth, end)
		}

		if req.MaxMembers != nil {
			used, err := s.repo.CountDistinctMonths(ctx, id)
			if err != nil {
				return err
			}
			if *req.MaxMembers < used {
				return apperror.Newf(apperror.KindInvalidAssignment,
					"max_members cannot be lower than the %d months already assigned", used)
			}
			g.MaxMembers = *req.MaxMembers
		}

		updated, err = s.repo.Update(ctx, g)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a group with no slots, payments or requests
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		count, err := s.repo.CountDependents(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrGroupHasHistory
		}

		deleted, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrGroupNotFound
		}
		return nil
	})
}

// AddMember assigns a member to a receive month. The group row is locked
// for the duration of the checks; the (group, month) unique constraint is
// the final arbiter.
func (s *Service) AddMember(ctx context.Context, groupID int64, req *AddMemberRequest) (*Slot, error) {
	var slot *Slot
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := s.repo.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		name, ok, err := s.repo.MemberName(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMemberNotFound
		}

		end := ""
		if g.EndMonth != nil {
			end = *g.EndMonth
		}
		if !period.Within(req.ReceiveMonth, g.StartMonth, end) {
			return apperror.Newf(apperror.KindInvalidAssignment,
				"receive month %s is outside the group's duration (%s to %s)", req.ReceiveMonth, g.StartMonth, end)
		}

		taken, err := s.repo.SlotByMonth(ctx, groupID, req.ReceiveMonth)
		if err != nil {
			return err
		}
		if taken != nil {
			return monthTaken(taken.MemberName)
		}

		used, err := s.repo.CountDistinctMonths(ctx, groupID)
		if err != nil {
			return err
		}
		if used >= g.MaxMembers {
			return ErrGroupFull
		}

		slot, err = s.repo.AddSlot(ctx, groupID, req.MemberID, req.ReceiveMonth)
		if err != nil {
			if database.IsUniqueViolation(err, "group_members_group_month_key") {
				return monthTaken("another member")
			}
			return err
		}
		slot.MemberName = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func monthTaken(name string) error {
	return apperror.Newf(apperror.KindInvalidAssignment, "month already assigned to %s", name)
}

// GetSlots retrieves all slots of a group
func (s *Service) GetSlots(ctx context.Context, groupID int64) ([]*Slot, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, groupID)
}

// RemoveSlot unassigns a slot that has no recorded payments
func (s *Service) RemoveSlot(ctx context.Context, groupID, slotID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		g, err := s.repo.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		slot, err := s.repo.GetSlot(ctx, groupID, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return ErrSlotNotFound
		}

		count, err := s.repo.CountSlotPayments(ctx, groupID, slot.MemberID, slot.ReceiveMonth)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrSlotHasPayments
		}

		removed, err := s.repo.RemoveSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrSlotNotFound
		}
		return nil
	})
}
