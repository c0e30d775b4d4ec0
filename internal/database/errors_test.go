package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "payments_archive_original_id_key"}
	wrapped := fmt.Errorf("failed to archive payment: %w", dup)

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", dup, "", true},
		{"matching constraint", wrapped, "payments_archive_original_id_key", true},
		{"other constraint", wrapped, "group_members_group_month_key", false},
		{"foreign key", &pq.Error{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := fmt.Errorf("failed to delete member: %w", &pq.Error{Code: "23503", Constraint: "notifications_recipient_id_fkey"})

	if !IsForeignKeyViolation(fk) {
		t.Error("wrapped 23503 not recognised")
	}
	if IsForeignKeyViolation(&pq.Error{Code: "23505"}) {
		t.Error("unique violation reported as foreign key")
	}
	if IsForeignKeyViolation(errors.New("boom")) {
		t.Error("plain error reported as foreign key")
	}
}
