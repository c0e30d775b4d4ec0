package paymentlog

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects audit entries. Every field is optional; set fields are
// ANDed together.
type Filter struct {
	PaymentID   *int64
	GroupID     *int64
	MemberID    *int64
	Action      Action
	PerformedBy *int64
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// where renders the filter as a parameterized WHERE clause. Only the
// predicates below can ever appear, and values are always bound.
func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PaymentID != nil {
		add("payment_id = $%d", *f.PaymentID)
	}
	if f.GroupID != nil {
		add("group_id = $%d", *f.GroupID)
	}
	if f.MemberID != nil {
		add("member_id = $%d", *f.MemberID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.PerformedBy != nil {
		add("performed_by_id = $%d", *f.PerformedBy)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
