package paymentlog

import (
	"reflect"
	"testing"
	"time"
)

func TestFilterWhere(t *testing.T) {
	paymentID := int64(7)
	groupID := int64(3)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    Filter
		wantWhere string
		wantArgs  []any
	}{
		{"empty", Filter{}, "", nil},
		{
			"payment only",
			Filter{PaymentID: &paymentID},
			" WHERE payment_id = $1",
			[]any{int64(7)},
		},
		{
			"combined",
			Filter{GroupID: &groupID, Action: ActionArchived, From: &from},
			" WHERE group_id = $1 AND action = $2 AND created_at >= $3",
			[]any{int64(3), "archived", from},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.filter.where()
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestFilterNeverInterpolatesValues(t *testing.T) {
	hostile := Action("created'; DROP TABLE payment_logs; --")
	where, args := Filter{Action: hostile}.where()

	if where != " WHERE action = $1" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 || args[0] != string(hostile) {
		t.Errorf("args = %v", args)
	}
}
