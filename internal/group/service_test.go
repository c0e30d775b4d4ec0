package group

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/database/dbtest"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

type fakeStore struct {
	groups   map[int64]*Group
	members  map[int64]string
	slots    map[int64]*Slot
	payments map[int64]int // slot id -> payment count
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:   map[int64]*Group{},
		members:  map[int64]string{},
		slots:    map[int64]*Slot{},
		payments: map[int64]int{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) Create(ctx context.Context, g *Group) (*Group, error) {
	g.ID = f.id()
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Group, error) {
	return f.groups[id], nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id int64) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset int) ([]*Group, int, error) {
	var out []*Group
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListByMemberID(ctx context.Context, memberID int64) ([]*Group, error) {
	var out []*Group
	for _, s := range f.slots {
		if s.MemberID == memberID {
			out = append(out, f.groups[s.GroupID])
		}
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, g *Group) (*Group, error) {
	if _, ok := f.groups[g.ID]; !ok {
		return nil, nil
	}
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeStore) CountDependents(ctx context.Context, id int64) (int, error) {
	n := 0
	for _, s := range f.slots {
		if s.GroupID == id {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.groups[id]; !ok {
		return false, nil
	}
	delete(f.groups, id)
	return true, nil
}

func (f *fakeStore) MemberName(ctx context.Context, memberID int64) (string, bool, error) {
	name, ok := f.members[memberID]
	return name, ok, nil
}

func (f *fakeStore) ListSlots(ctx context.Context, groupID int64) ([]*Slot, error) {
	var out []*Slot
	for _, s := range f.slots {
		if s.GroupID == groupID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSlot(ctx context.Context, groupID, slotID int64) (*Slot, error) {
	s, ok := f.slots[slotID]
	if !ok || s.GroupID != groupID {
		return nil, nil
	}
	return s, nil
}

func (f *fakeStore) SlotByMonth(ctx context.Context, groupID int64, month string) (*Slot, error) {
	for _, s := range f.slots {
		if s.GroupID == groupID && s.ReceiveMonth == month {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountDistinctMonths(ctx context.Context, groupID int64) (int, error) {
	months := map[string]bool{}
	for _, s := range f.slots {
		if s.GroupID == groupID {
			months[s.ReceiveMonth] = true
		}
	}
	return len(months), nil
}

func (f *fakeStore) AddSlot(ctx context.Context, groupID, memberID int64, month string) (*Slot, error) {
	s := &Slot{ID: f.id(), GroupID: groupID, MemberID: memberID, ReceiveMonth: month, MemberName: f.members[memberID]}
	f.slots[s.ID] = s
	return s, nil
}

func (f *fakeStore) CountSlotPayments(ctx context.Context, groupID, memberID int64, month string) (int, error) {
	for id, s := range f.slots {
		if s.GroupID == groupID && s.MemberID == memberID && s.ReceiveMonth == month {
			return f.payments[id], nil
		}
	}
	return 0, nil
}

func (f *fakeStore) RemoveSlot(ctx context.Context, slotID int64) (bool, error) {
	if _, ok := f.slots[slotID]; !ok {
		return false, nil
	}
	delete(f.slots, slotID)
	return true, nil
}

func (f *fakeStore) MonthsOutside(ctx context.Context, groupID int64, start, end string) ([]string, error) {
	var out []string
	for _, s := range f.slots {
		if s.GroupID == groupID && (s.ReceiveMonth < start || s.ReceiveMonth > end) {
			out = append(out, s.ReceiveMonth)
		}
	}
	return out, nil
}

func sixMonthGroup(t *testing.T, svc *Service) *Group {
	t.Helper()
	g, err := svc.Create(context.Background(), &CreateGroupRequest{
		Name:          "Januari pot",
		MonthlyAmount: decimal.NewFromInt(500),
		MaxMembers:    6,
		Duration:      6,
		StartMonth:    "2024-01",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return g
}

func TestCreateDerivesEndMonth(t *testing.T) {
	svc := NewService(newFakeStore(), &dbtest.Transactor{})
	g := sixMonthGroup(t, svc)

	if g.EndMonth == nil || *g.EndMonth != "2024-06" {
		t.Errorf("EndMonth = %v, want 2024-06", g.EndMonth)
	}
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newFakeStore(), &dbtest.Transactor{})
	_, err := svc.Create(context.Background(), &CreateGroupRequest{
		Name: "x", MonthlyAmount: decimal.Zero, MaxMembers: 2, Duration: 2, StartMonth: "2024-01",
	})
	if !errors.Is(err, apperror.Validation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestAddMemberFillsGroup(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	g := sixMonthGroup(t, svc)

	ctx := context.Background()
	months := []string{"2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2024-06"}
	for i, m := range months {
		id := int64(100 + i)
		store.members[id] = "Member " + m
		if _, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: id, ReceiveMonth: m}); err != nil {
			t.Fatalf("AddMember(%s) error = %v", m, err)
		}
	}

	store.members[200] = "Latecomer"

	_, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 200, ReceiveMonth: "2024-03"})
	if !errors.Is(err, apperror.InvalidAssignment) {
		t.Fatalf("error = %v, want invalid assignment", err)
	}
	if !strings.Contains(err.Error(), "month already assigned to Member 2024-03") {
		t.Errorf("message = %q", err.Error())
	}

	_, err = svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 200, ReceiveMonth: "2024-07"})
	if !errors.Is(err, apperror.InvalidAssignment) || !strings.Contains(err.Error(), "outside") {
		t.Errorf("out of range error = %v", err)
	}
}

func TestAddMemberGroupFull(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()

	g, err := svc.Create(ctx, &CreateGroupRequest{
		Name: "Small", MonthlyAmount: decimal.NewFromInt(100), MaxMembers: 2, Duration: 4, StartMonth: "2024-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	store.members[1] = "Anita"
	store.members[2] = "Ravi"
	store.members[3] = "Sunil"

	for i, m := range []string{"2024-01", "2024-02"} {
		if _, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: int64(i + 1), ReceiveMonth: m}); err != nil {
			t.Fatal(err)
		}
	}

	_, err = svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 3, ReceiveMonth: "2024-03"})
	if err != ErrGroupFull {
		t.Errorf("error = %v, want ErrGroupFull", err)
	}
}

func TestAddMemberCheckOrder(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()
	g := sixMonthGroup(t, svc)

	if _, err := svc.AddMember(ctx, 999, &AddMemberRequest{MemberID: 1, ReceiveMonth: "2024-01"}); err != ErrGroupNotFound {
		t.Errorf("unknown group: %v", err)
	}
	if _, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 1, ReceiveMonth: "1999-01"}); err != ErrMemberNotFound {
		t.Errorf("unknown member should win over bad month: %v", err)
	}
}

func TestUpdateRejectsOrphanedSlots(t *testing.T) {
	store := newFakeStore()
	tx := &dbtest.Transactor{}
	svc := NewService(store, tx)
	ctx := context.Background()
	g := sixMonthGroup(t, svc)

	store.members[1] = "Anita"
	if _, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 1, ReceiveMonth: "2024-06"}); err != nil {
		t.Fatal(err)
	}

	shorter := 3
	_, err := svc.Update(ctx, g.ID, &UpdateGroupRequest{Duration: &shorter})
	if !errors.Is(err, apperror.InvalidAssignment) {
		t.Fatalf("error = %v, want invalid assignment", err)
	}
	if got := *store.groups[g.ID].EndMonth; got != "2024-06" {
		t.Errorf("stored end month changed to %s", got)
	}

	longer := 12
	updated, err := svc.Update(ctx, g.ID, &UpdateGroupRequest{Duration: &longer})
	if err != nil {
		t.Fatal(err)
	}
	if *updated.EndMonth != "2024-12" {
		t.Errorf("EndMonth = %s, want 2024-12", *updated.EndMonth)
	}
}

func TestDeleteWithSlotsConflicts(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()
	g := sixMonthGroup(t, svc)

	store.members[1] = "Anita"
	if _, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 1, ReceiveMonth: "2024-02"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, g.ID); err != ErrGroupHasHistory {
		t.Errorf("Delete() error = %v, want ErrGroupHasHistory", err)
	}
}

func TestRemoveSlotWithPayments(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &dbtest.Transactor{})
	ctx := context.Background()
	g := sixMonthGroup(t, svc)

	store.members[1] = "Anita"
	slot, err := svc.AddMember(ctx, g.ID, &AddMemberRequest{MemberID: 1, ReceiveMonth: "2024-02"})
	if err != nil {
		t.Fatal(err)
	}

	store.payments[slot.ID] = 1
	if err := svc.RemoveSlot(ctx, g.ID, slot.ID); err != ErrSlotHasPayments {
		t.Errorf("RemoveSlot() error = %v, want ErrSlotHasPayments", err)
	}

	store.payments[slot.ID] = 0
	if err := svc.RemoveSlot(ctx, g.ID, slot.ID); err != nil {
		t.Errorf("RemoveSlot() error = %v", err)
	}
}
