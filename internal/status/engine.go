// Package status derives group payment state, payout recipients and the
// dashboard aggregates. Nothing here is cached or written; every answer is
// recomputed from the store on request.
package status

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/group"
	"github.com/fkhayef/kasmoni/internal/payment"
	"github.com/fkhayef/kasmoni/pkg/period"
)

// Store is the read model the engine works from
type Store interface {
	ActiveGroups(ctx context.Context, period string) ([]*group.Group, error)
	GetGroup(ctx context.Context, id int64) (*group.Group, error)
	SlotsByGroup(ctx context.Context, groupIDs []int64) (map[int64][]*group.Slot, error)
	PaymentsInPeriod(ctx context.Context, groupIDs []int64, period string) ([]*PaymentRow, error)
	CountOverdue(ctx context.Context, period string, deadline time.Time) (int, error)
	Totals(ctx context.Context, period string) (*Totals, error)
}

// Engine answers status questions for a billing period
type Engine struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewEngine creates a status engine evaluating wall-clock rules in loc
func NewEngine(store Store, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc, now: time.Now}
}

// Today returns the current period in the engine's location
func (e *Engine) Today() string {
	return period.Of(e.now().In(e.loc))
}

type slotKey struct {
	memberID int64
	month    string
}

// latest keeps the highest-id payment per (member, slot)
func latest(payments []*PaymentRow) map[slotKey]*PaymentRow {
	out := make(map[slotKey]*PaymentRow, len(payments))
	for _, p := range payments {
		k := slotKey{p.MemberID, p.Slot}
		if cur, ok := out[k]; !ok || p.ID > cur.ID {
			out[k] = p
		}
	}
	return out
}

func isStatus(raw string, s payment.Status) bool {
	return strings.EqualFold(strings.TrimSpace(raw), string(s))
}

func settled(raw string) bool {
	return isStatus(raw, payment.StatusReceived) || isStatus(raw, payment.StatusSettled)
}

// Classify derives a group's status from its slots and the payments of one
// period. A group without slots, or with any slot lacking a paid or pending
// latest payment, is not_paid.
func Classify(slots []*group.Slot, payments []*PaymentRow) GroupStatus {
	if len(slots) == 0 {
		return NotPaid
	}

	byKey := latest(payments)
	result := FullyPaid
	for _, s := range slots {
		p, ok := byKey[slotKey{s.MemberID, s.ReceiveMonth}]
		switch {
		case !ok:
			return NotPaid
		case isStatus(p.Status, payment.StatusPending):
			result = Pending
		case settled(p.Status):
		default:
			return NotPaid
		}
	}
	return result
}

func recipientOf(g *group.Group, slots []*group.Slot, period string) *Recipient {
	for _, s := range slots {
		if s.ReceiveMonth != period {
			continue
		}
		return &Recipient{
			GroupID:      g.ID,
			SlotID:       s.ID,
			MemberID:     s.MemberID,
			MemberName:   s.MemberName,
			ReceiveMonth: s.ReceiveMonth,
			Payout:       g.MonthlyAmount.Mul(decimal.NewFromInt(int64(len(slots)))),
		}
	}
	return nil
}

// DeriveGroupStatus classifies every group active in period
func (e *Engine) DeriveGroupStatus(ctx context.Context, period string) ([]*GroupState, error) {
	groups, err := e.store.ActiveGroups(ctx, period)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []*GroupState{}, nil
	}

	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}

	slots, err := e.store.SlotsByGroup(ctx, ids)
	if err != nil {
		return nil, err
	}
	payments, err := e.store.PaymentsInPeriod(ctx, ids, period)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[int64][]*PaymentRow)
	for _, p := range payments {
		byGroup[p.GroupID] = append(byGroup[p.GroupID], p)
	}

	states := make([]*GroupState, 0, len(groups))
	for _, g := range groups {
		gs := slots[g.ID]
		gp := byGroup[g.ID]

		paid := 0
		for _, p := range latest(gp) {
			if settled(p.Status) {
				paid++
			}
		}

		states = append(states, &GroupState{
			GroupID:       g.ID,
			Name:          g.Name,
			MonthlyAmount: g.MonthlyAmount,
			StartMonth:    g.StartMonth,
			EndMonth:      g.EndMonth,
			Period:        period,
			Status:        Classify(gs, gp),
			SlotCount:     len(gs),
			PaidCount:     paid,
			Recipient:     recipientOf(g, gs, period),
		})
	}
	return states, nil
}

// DeriveRecipient returns the member receiving groupID's payout in period,
// or nil when the group is unknown or nobody is scheduled
func (e *Engine) DeriveRecipient(ctx context.Context, groupID int64, period string) (*Recipient, error) {
	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil || g == nil {
		return nil, err
	}

	slots, err := e.store.SlotsByGroup(ctx, []int64{groupID})
	if err != nil {
		return nil, err
	}
	return recipientOf(g, slots[groupID], period), nil
}

// HoldsSlot reports whether memberID is assigned any month in groupID
func (e *Engine) HoldsSlot(ctx context.Context, groupID, memberID int64) (bool, error) {
	slots, err := e.store.SlotsByGroup(ctx, []int64{groupID})
	if err != nil {
		return false, err
	}
	for _, s := range slots[groupID] {
		if s.MemberID == memberID {
			return true, nil
		}
	}
	return false, nil
}

// GroupPaymentGrid lists every slot of a group with its latest payment for
// period. An unknown group yields an empty grid.
func (e *Engine) GroupPaymentGrid(ctx context.Context, groupID int64, period string) ([]*GridRow, error) {
	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return []*GridRow{}, nil
	}

	slots, err := e.store.SlotsByGroup(ctx, []int64{groupID})
	if err != nil {
		return nil, err
	}
	payments, err := e.store.PaymentsInPeriod(ctx, []int64{groupID}, period)
	if err != nil {
		return nil, err
	}

	byKey := latest(payments)
	rows := make([]*GridRow, 0, len(slots[groupID]))
	for _, s := range slots[groupID] {
		row := &GridRow{
			SlotID:       s.ID,
			MemberID:     s.MemberID,
			MemberName:   s.MemberName,
			ReceiveMonth: s.ReceiveMonth,
			Status:       string(payment.StatusNotPaid),
			Amount:       decimal.Zero,
			IsRecipient:  s.ReceiveMonth == period,
		}
		if p, ok := byKey[slotKey{s.MemberID, s.ReceiveMonth}]; ok {
			id := p.ID
			row.PaymentID = &id
			row.Status = strings.ToLower(p.Status)
			row.Amount = p.Amount
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// OverdueDeadline is 23:59:59 on the 28th of now's month in loc. The month
// is taken from the wall clock, not from the period being asked about.
func OverdueDeadline(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), 28, 23, 59, 59, 0, loc)
}

// CountOverdue counts not_paid and pending payments of period dated on or
// before the deadline. It is zero until the deadline has passed.
func (e *Engine) CountOverdue(ctx context.Context, period string) (int, error) {
	now := e.now()
	deadline := OverdueDeadline(now, e.loc)
	if !now.After(deadline) {
		return 0, nil
	}
	return e.store.CountOverdue(ctx, period, deadline)
}

// DashboardStats aggregates the period summary
func (e *Engine) DashboardStats(ctx context.Context, period string) (*Dashboard, error) {
	totals, err := e.store.Totals(ctx, period)
	if err != nil {
		return nil, err
	}

	overdue, err := e.CountOverdue(ctx, period)
	if err != nil {
		return nil, err
	}

	states, err := e.DeriveGroupStatus(ctx, period)
	if err != nil {
		return nil, err
	}

	counts := map[GroupStatus]int{FullyPaid: 0, Pending: 0, NotPaid: 0}
	for _, s := range states {
		counts[s.Status]++
	}

	return &Dashboard{
		Period:        period,
		ActiveGroups:  totals.ActiveGroups,
		TotalMembers:  totals.TotalMembers,
		TotalExpected: totals.TotalExpected,
		TotalPaid:     totals.Received.Add(totals.Pending).Add(totals.Settled),
		Received:      totals.Received,
		Pending:       totals.Pending,
		Settled:       totals.Settled,
		OverdueCount:  overdue,
		OverdueAfter:  OverdueDeadline(e.now(), e.loc),
		StatusCounts:  counts,
	}, nil
}
