package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/internal/database/dbtest"
	"github.com/fkhayef/kasmoni/internal/paymentlog"
	"github.com/fkhayef/kasmoni/pkg/apperror"
)

type fakeStore struct {
	groups   map[int64]bool
	members  map[int64]bool
	slots    map[[2]int64][]string
	payments map[int64]*Payment
	trash    map[int64]*TrashEntry
	archive  map[int64]*ArchiveEntry
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:   map[int64]bool{1: true},
		members:  map[int64]bool{10: true, 11: true, 12: true},
		slots:    map[[2]int64][]string{{1, 10}: {"2025-01"}, {1, 11}: {"2025-02", "2025-05"}},
		payments: map[int64]*Payment{},
		trash:    map[int64]*TrashEntry{},
		archive:  map[int64]*ArchiveEntry{},
	}
}

func (f *fakeStore) snapshot() func() {
	payments := map[int64]*Payment{}
	for id, p := range f.payments {
		cp := *p
		payments[id] = &cp
	}
	trash := map[int64]*TrashEntry{}
	for id, t := range f.trash {
		trash[id] = t
	}
	archive := map[int64]*ArchiveEntry{}
	for id, a := range f.archive {
		archive[id] = a
	}
	return func() {
		f.payments, f.trash, f.archive = payments, trash, archive
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GroupExists(ctx context.Context, id int64) (bool, error)  { return f.groups[id], nil }
func (f *fakeStore) MemberExists(ctx context.Context, id int64) (bool, error) { return f.members[id], nil }

func (f *fakeStore) MemberSlots(ctx context.Context, groupID, memberID int64) ([]string, error) {
	return f.slots[[2]int64{groupID, memberID}], nil
}

func (f *fakeStore) Create(ctx context.Context, p *Payment) (*Payment, error) {
	cp := *p
	cp.ID = f.id()
	cp.CreatedAt = time.Now()
	f.payments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) Upsert(ctx context.Context, p *Payment) (*Payment, error) {
	var latest *Payment
	for _, cur := range f.payments {
		if cur.GroupID == p.GroupID && cur.MemberID == p.MemberID && cur.Slot == p.Slot {
			if latest == nil || cur.ID > latest.ID {
				latest = cur
			}
		}
	}
	if latest == nil {
		return f.Create(ctx, p)
	}
	p.ID = latest.ID
	return f.Update(ctx, p)
}

func (f *fakeStore) InsertWithID(ctx context.Context, p *Payment) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id int64) (*Payment, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) List(ctx context.Context, filter Filter) ([]*Payment, int, error) {
	var out []*Payment
	for _, p := range f.payments {
		if filter.MemberID != nil && p.MemberID != *filter.MemberID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, status Status) (*Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, nil
	}
	p.Status = status
	return f.GetByID(ctx, id)
}

func (f *fakeStore) Update(ctx context.Context, p *Payment) (*Payment, error) {
	if _, ok := f.payments[p.ID]; !ok {
		return nil, nil
	}
	cp := *p
	f.payments[p.ID] = &cp
	return f.GetByID(ctx, p.ID)
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.payments[id]; !ok {
		return false, nil
	}
	delete(f.payments, id)
	return true, nil
}

func (f *fakeStore) InsertTrash(ctx context.Context, p *Payment, actor auth.Actor) (*TrashEntry, error) {
	e := &TrashEntry{ID: f.id(), Payment: *p, DeletedByUsername: actor.Username, DeletedAt: time.Now()}
	f.trash[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetTrash(ctx context.Context, id int64) (*TrashEntry, error) {
	return f.trash[id], nil
}

func (f *fakeStore) GetTrashForUpdate(ctx context.Context, id int64) (*TrashEntry, error) {
	return f.trash[id], nil
}

func (f *fakeStore) ListTrash(ctx context.Context, limit, offset int) ([]*TrashEntry, int, error) {
	var out []*TrashEntry
	for _, e := range f.trash {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeStore) DeleteTrash(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.trash[id]; !ok {
		return false, nil
	}
	delete(f.trash, id)
	return true, nil
}

func (f *fakeStore) ArchiveExists(ctx context.Context, originalID int64) (bool, error) {
	for _, a := range f.archive {
		if a.Payment.ID == originalID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertArchive(ctx context.Context, p *Payment, reason *string, actor auth.Actor) (*ArchiveEntry, error) {
	e := &ArchiveEntry{ID: f.id(), Payment: *p, ArchiveReason: reason, ArchivedByUsername: actor.Username, ArchivedAt: time.Now()}
	f.archive[e.ID] = e
	return e, nil
}

func (f *fakeStore) ListArchive(ctx context.Context, limit, offset int) ([]*ArchiveEntry, int, error) {
	var out []*ArchiveEntry
	for _, e := range f.archive {
		out = append(out, e)
	}
	return out, len(out), nil
}

type fakeLogs struct {
	entries []*paymentlog.Entry
	err     error
}

func (f *fakeLogs) Write(ctx context.Context, e *paymentlog.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLogs) actions() []paymentlog.Action {
	out := make([]paymentlog.Action, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

type fakeNotifier struct {
	sent []int64
	refs []string
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, memberID int64, message, entityType string, entityID int64) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("notify called without a deadline")
	}
	f.sent = append(f.sent, memberID)
	f.refs = append(f.refs, fmt.Sprintf("%s:%d", entityType, entityID))
	return f.err
}

type fixture struct {
	store    *fakeStore
	logs     *fakeLogs
	notifier *fakeNotifier
	tx       *dbtest.Transactor
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), logs: &fakeLogs{}, notifier: &fakeNotifier{}}
	f.tx = &dbtest.Transactor{Snapshot: func() func() {
		restoreStore := f.store.snapshot()
		n := len(f.logs.entries)
		return func() {
			restoreStore()
			f.logs.entries = f.logs.entries[:n]
		}
	}}
	f.svc = NewService(f.store, f.tx, f.logs, f.notifier, time.Second)
	return f
}

var admin = auth.Actor{
	Principal: auth.Principal{ID: 1, Username: "treasurer", Role: auth.RoleAdministrator, UserType: auth.UserTypeAdmin},
	IPAddress: "10.0.0.1",
}

func createReq(memberID int64, slot string) *CreatePaymentRequest {
	return &CreatePaymentRequest{
		GroupID:      1,
		MemberID:     memberID,
		Amount:       decimal.NewFromInt(500),
		PaymentDate:  "2025-01-15",
		PaymentMonth: "2025-01",
		Slot:         slot,
	}
}

func (f *fixture) mustCreate(t *testing.T, memberID int64, slot string) *Payment {
	t.Helper()
	p, err := f.svc.Create(context.Background(), admin, createReq(memberID, slot))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return p
}

func TestCreatePreconditionOrder(t *testing.T) {
	tests := []struct {
		name string
		req  *CreatePaymentRequest
		want error
	}{
		{"unknown group", &CreatePaymentRequest{GroupID: 9, MemberID: 99, Slot: "2030-01"}, ErrGroupNotFound},
		{"unknown member", &CreatePaymentRequest{GroupID: 1, MemberID: 99, Slot: "2030-01"}, ErrMemberNotFound},
		{"member without slot", &CreatePaymentRequest{GroupID: 1, MemberID: 12, Slot: "2025-01"}, ErrNotInGroup},
		{"slot not owned", &CreatePaymentRequest{GroupID: 1, MemberID: 11, Slot: "2025-01"}, ErrSlotNotOwned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.req.Amount = decimal.NewFromInt(100)
			tt.req.PaymentDate = "2025-01-01"
			tt.req.PaymentMonth = "2025-01"

			_, err := f.svc.Create(context.Background(), admin, tt.req)
			if err != tt.want {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if len(f.store.payments) != 0 {
				t.Errorf("payment persisted on failed precondition")
			}
		})
	}
}

func TestCreateDefaultsAndSideEffects(t *testing.T) {
	f := newFixture()
	p := f.mustCreate(t, 11, "2025-05")

	if p.Status != StatusNotPaid || p.PaymentType != TypeCash {
		t.Errorf("defaults = %s/%s", p.Status, p.PaymentType)
	}
	if len(f.logs.entries) != 1 || f.logs.entries[0].Action != paymentlog.ActionCreated {
		t.Fatalf("logs = %v", f.logs.actions())
	}
	e := f.logs.entries[0]
	if e.PerformedByUsername != "treasurer" || e.IPAddress != "10.0.0.1" || *e.PaymentID != p.ID {
		t.Errorf("entry attribution = %+v", e)
	}
	if e.NewValues["slot"] != "2025-05" {
		t.Errorf("after image = %v", e.NewValues)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != 11 {
		t.Fatalf("notifications = %v", f.notifier.sent)
	}
	if want := fmt.Sprintf("PAYMENT:%d", p.ID); f.notifier.refs[0] != want {
		t.Errorf("notification points at %s, want %s", f.notifier.refs[0], want)
	}
}

func TestCreateSurvivesLogAndNotifyFailures(t *testing.T) {
	f := newFixture()
	f.logs.err = errors.New("log table locked")
	f.notifier.err = errors.New("smtp down")

	if _, err := f.svc.Create(context.Background(), admin, createReq(10, "2025-01")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(f.store.payments) != 1 {
		t.Errorf("payment not persisted")
	}
}

func TestCreateBulkRollsBackOnFailure(t *testing.T) {
	f := newFixture()
	req := &BulkCreateRequest{
		GroupID:      1,
		PaymentMonth: "2025-02",
		Items: []*BulkItem{
			{MemberID: 10, Amount: decimal.NewFromInt(500), PaymentDate: "2025-02-01", Slot: "2025-01"},
			{MemberID: 11, Amount: decimal.NewFromInt(500), PaymentDate: "2025-02-01", Slot: "2025-03"},
		},
	}

	_, err := f.svc.CreateBulk(context.Background(), admin, req)
	if !errors.Is(err, apperror.InvalidAssignment) {
		t.Fatalf("error = %v, want invalid assignment", err)
	}
	if idx, ok := apperror.IndexOf(err); !ok || idx != 1 {
		t.Errorf("index = %d, %v; want 1", idx, ok)
	}
	if len(f.store.payments) != 0 {
		t.Errorf("%d payments survived the rollback", len(f.store.payments))
	}
	if len(f.logs.entries) != 0 || len(f.notifier.sent) != 0 {
		t.Errorf("side effects after rollback: logs=%v notify=%v", f.logs.actions(), f.notifier.sent)
	}
	if f.tx.Rollbacks != 1 {
		t.Errorf("Rollbacks = %d", f.tx.Rollbacks)
	}
}

func TestCreateBulkUpsertsAndLogsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := func(member int64, slot, status string) *BulkItem {
		return &BulkItem{MemberID: member, Amount: decimal.NewFromInt(500), PaymentDate: "2025-02-01", Slot: slot, Status: Status(status)}
	}

	first := &BulkCreateRequest{GroupID: 1, PaymentMonth: "2025-02", Items: []*BulkItem{
		item(10, "2025-01", "pending"),
		item(11, "2025-02", "pending"),
		item(11, "2025-05", "pending"),
	}}
	if _, err := f.svc.CreateBulk(ctx, admin, first); err != nil {
		t.Fatal(err)
	}

	second := &BulkCreateRequest{GroupID: 1, PaymentMonth: "2025-02", Items: []*BulkItem{item(10, "2025-01", "received")}}
	out, err := f.svc.CreateBulk(ctx, admin, second)
	if err != nil {
		t.Fatal(err)
	}

	if len(f.store.payments) != 3 {
		t.Errorf("payments = %d, want 3 after upsert", len(f.store.payments))
	}
	if out[0].Status != StatusReceived {
		t.Errorf("upserted status = %s", out[0].Status)
	}

	bulkLogs := 0
	for _, e := range f.logs.entries {
		if e.Action == paymentlog.ActionBulkCreated {
			bulkLogs++
			if e.PaymentID != nil {
				t.Errorf("bulk entry carries a payment id")
			}
		}
	}
	if bulkLogs != 2 {
		t.Errorf("bulk_created entries = %d, want one per batch", bulkLogs)
	}
	// two distinct members in the first batch, one in the second
	if len(f.notifier.sent) != 3 {
		t.Errorf("notifications = %v", f.notifier.sent)
	}
}

func TestCreateBulkUpdatesSlotAcrossPeriods(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := &BulkItem{MemberID: 10, Amount: decimal.NewFromInt(500), PaymentDate: "2025-01-03", Slot: "2025-01", Status: StatusPending}

	first, err := f.svc.CreateBulk(ctx, admin, &BulkCreateRequest{GroupID: 1, PaymentMonth: "2025-01", Items: []*BulkItem{item}})
	if err != nil {
		t.Fatal(err)
	}

	next := *item
	next.PaymentDate = "2025-02-03"
	next.Status = StatusReceived
	second, err := f.svc.CreateBulk(ctx, admin, &BulkCreateRequest{GroupID: 1, PaymentMonth: "2025-02", Items: []*BulkItem{&next}})
	if err != nil {
		t.Fatal(err)
	}

	if len(f.store.payments) != 1 {
		t.Fatalf("payments for (1, 10, 2025-01) = %d, want 1", len(f.store.payments))
	}
	if second[0].ID != first[0].ID {
		t.Errorf("second submission id = %d, want the existing %d", second[0].ID, first[0].ID)
	}
	got := f.store.payments[first[0].ID]
	if got.PaymentMonth != "2025-02" || got.Status != StatusReceived {
		t.Errorf("row not updated in place: month %s status %s", got.PaymentMonth, got.Status)
	}
}

func TestSetStatusLogsTransition(t *testing.T) {
	f := newFixture()
	p := f.mustCreate(t, 10, "2025-01")

	updated, err := f.svc.SetStatus(context.Background(), admin, p.ID, StatusReceived)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != StatusReceived {
		t.Errorf("status = %s", updated.Status)
	}

	last := f.logs.entries[len(f.logs.entries)-1]
	if last.Action != paymentlog.ActionStatusChanged || last.OldValues["status"] != "not_paid" || last.NewValues["status"] != "received" {
		t.Errorf("status log = %+v", last)
	}

	if _, err := f.svc.SetStatus(context.Background(), admin, 404, StatusReceived); err != ErrPaymentNotFound {
		t.Errorf("missing payment: %v", err)
	}
}

func TestBulkSetStatusIsAtomic(t *testing.T) {
	f := newFixture()
	a := f.mustCreate(t, 10, "2025-01")
	logsBefore := len(f.logs.entries)

	_, err := f.svc.BulkSetStatus(context.Background(), admin, []int64{a.ID, 999}, StatusSettled)
	if !errors.Is(err, apperror.NotFound) {
		t.Fatalf("error = %v", err)
	}
	if idx, _ := apperror.IndexOf(err); idx != 1 {
		t.Errorf("index = %d, want 1", idx)
	}
	if f.store.payments[a.ID].Status != StatusNotPaid {
		t.Errorf("first row kept status %s after rollback", f.store.payments[a.ID].Status)
	}
	if len(f.logs.entries) != logsBefore {
		t.Errorf("log entries survived rollback")
	}
}

func TestUpdateLogsChangedFieldsOnly(t *testing.T) {
	f := newFixture()
	p := f.mustCreate(t, 11, "2025-02")

	amount := decimal.NewFromInt(650)
	notes := "corrected"
	_, err := f.svc.Update(context.Background(), admin, p.ID, &UpdatePaymentRequest{Amount: &amount, Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}

	last := f.logs.entries[len(f.logs.entries)-1]
	if last.Action != paymentlog.ActionUpdated {
		t.Fatalf("action = %s", last.Action)
	}
	if len(last.NewValues) != 2 || last.NewValues["amount"] != "650" || last.NewValues["notes"] != "corrected" {
		t.Errorf("new values = %v", last.NewValues)
	}
	if last.OldValues["amount"] != "500" {
		t.Errorf("old values = %v", last.OldValues)
	}

	slot := "2025-01"
	if _, err := f.svc.Update(context.Background(), admin, p.ID, &UpdatePaymentRequest{Slot: &slot}); err != ErrSlotNotOwned {
		t.Errorf("slot move: %v, want ErrSlotNotOwned", err)
	}
}

func TestSoftDeleteRestoreAndPurge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.mustCreate(t, 10, "2025-01")

	if err := f.svc.SoftDelete(ctx, admin, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.payments[p.ID]; ok {
		t.Fatal("live row still present")
	}
	if len(f.store.trash) != 1 {
		t.Fatalf("trash = %d", len(f.store.trash))
	}

	var trashID int64
	for id := range f.store.trash {
		trashID = id
	}

	restored, err := f.svc.Restore(ctx, admin, trashID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ID != p.ID {
		t.Errorf("restored id = %d, want original %d", restored.ID, p.ID)
	}
	if len(f.store.trash) != 0 {
		t.Errorf("trash entry kept after restore")
	}

	if err := f.svc.SoftDelete(ctx, admin, p.ID); err != nil {
		t.Fatal(err)
	}
	for id := range f.store.trash {
		trashID = id
	}
	if err := f.svc.PurgeTrash(ctx, admin, trashID); err != nil {
		t.Fatal(err)
	}

	want := []paymentlog.Action{
		paymentlog.ActionCreated,
		paymentlog.ActionDeleted,
		paymentlog.ActionRestored,
		paymentlog.ActionDeleted,
		paymentlog.ActionPermanentlyDeleted,
	}
	got := f.logs.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if err := f.svc.SoftDelete(ctx, admin, p.ID); err != ErrPaymentNotFound {
		t.Errorf("deleting a purged payment: %v", err)
	}
}

func TestRestoreRequiresAssignedSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.mustCreate(t, 10, "2025-01")

	if err := f.svc.SoftDelete(ctx, admin, p.ID); err != nil {
		t.Fatal(err)
	}
	var trashID int64
	for id := range f.store.trash {
		trashID = id
	}

	// the slot was removed while the payment sat in the trashbox
	delete(f.store.slots, [2]int64{1, 10})

	if _, err := f.svc.Restore(ctx, admin, trashID); err != ErrNotInGroup {
		t.Errorf("Restore() error = %v, want %v", err, ErrNotInGroup)
	}
	if _, ok := f.store.payments[p.ID]; ok {
		t.Error("payment restored for an unassigned slot")
	}
	if _, ok := f.store.trash[trashID]; !ok {
		t.Error("trash entry dropped by a failed restore")
	}
}

func TestSoftDeleteRollsBackWhenLogFails(t *testing.T) {
	f := newFixture()
	p := f.mustCreate(t, 10, "2025-01")
	f.logs.err = errors.New("disk full")

	if err := f.svc.SoftDelete(context.Background(), admin, p.ID); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := f.store.payments[p.ID]; !ok {
		t.Errorf("live row removed although the log write failed")
	}
	if len(f.store.trash) != 0 {
		t.Errorf("trash entry kept after rollback")
	}
}

func TestArchiveTwiceConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.mustCreate(t, 10, "2025-01")
	reason := "season closed"

	entry, err := f.svc.Archive(ctx, admin, p.ID, &reason)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Payment.ID != p.ID || *entry.ArchiveReason != reason {
		t.Errorf("entry = %+v", entry)
	}

	_, err = f.svc.Archive(ctx, admin, p.ID, nil)
	if !errors.Is(err, apperror.Conflict) {
		t.Errorf("second archive: %v, want conflict", err)
	}

	if _, err := f.svc.Archive(ctx, admin, 777, nil); err != ErrPaymentNotFound {
		t.Errorf("missing payment: %v", err)
	}
}

func TestArchiveBulkAbortsOnFirstFailure(t *testing.T) {
	f := newFixture()
	a := f.mustCreate(t, 10, "2025-01")
	b := f.mustCreate(t, 11, "2025-02")

	_, err := f.svc.ArchiveBulk(context.Background(), admin, []int64{a.ID, 555, b.ID}, nil)
	if idx, ok := apperror.IndexOf(err); !ok || idx != 1 {
		t.Fatalf("error = %v, want index 1", err)
	}
	if len(f.store.archive) != 0 || len(f.store.payments) != 2 {
		t.Errorf("partial archive visible: archive=%d live=%d", len(f.store.archive), len(f.store.payments))
	}
}
