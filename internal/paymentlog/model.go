package paymentlog

import (
	"time"

	"github.com/fkhayef/kasmoni/internal/auth"
)

// Action names a payment lifecycle event
type Action string

const (
	ActionCreated            Action = "created"
	ActionStatusChanged      Action = "status_changed"
	ActionUpdated            Action = "updated"
	ActionDeleted            Action = "deleted"
	ActionBulkCreated        Action = "bulk_created"
	ActionRestored           Action = "restored"
	ActionPermanentlyDeleted Action = "permanently_deleted"
	ActionArchived           Action = "archived"
)

// Actions lists every recorded action, in lifecycle order
var Actions = []Action{
	ActionCreated,
	ActionStatusChanged,
	ActionUpdated,
	ActionDeleted,
	ActionBulkCreated,
	ActionRestored,
	ActionPermanentlyDeleted,
	ActionArchived,
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Entry is one immutable audit record. PaymentID is nil for batch entries.
type Entry struct {
	ID                  int64          `json:"id"`
	PaymentID           *int64         `json:"payment_id,omitempty"`
	GroupID             *int64         `json:"group_id,omitempty"`
	MemberID            *int64         `json:"member_id,omitempty"`
	Action              Action         `json:"action"`
	OldValues           map[string]any `json:"old_values,omitempty"`
	NewValues           map[string]any `json:"new_values,omitempty"`
	Details             string         `json:"details,omitempty"`
	PerformedByID       *int64         `json:"performed_by_id,omitempty"`
	PerformedByUsername string         `json:"performed_by_username"`
	IPAddress           string         `json:"ip_address,omitempty"`
	UserAgent           string         `json:"user_agent,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// NewEntry starts an entry attributed to actor
func NewEntry(actor auth.Actor, action Action) *Entry {
	e := &Entry{
		Action:              action,
		PerformedByUsername: actor.Username,
		IPAddress:           actor.IPAddress,
		UserAgent:           actor.UserAgent,
	}
	if actor.ID != 0 {
		id := actor.ID
		e.PerformedByID = &id
	}
	return e
}

// For sets the payment, group and member the entry is about
func (e *Entry) For(paymentID, groupID, memberID int64) *Entry {
	e.PaymentID = &paymentID
	e.GroupID = &groupID
	e.MemberID = &memberID
	return e
}

// With sets the before and after images
func (e *Entry) With(oldValues, newValues map[string]any) *Entry {
	e.OldValues = oldValues
	e.NewValues = newValues
	return e
}
