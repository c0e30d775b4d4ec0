// Package auth verifies bearer tokens and describes the calling principal.
package auth

import "context"

// Role is the administrative role of a principal
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleSuperUser     Role = "super_user"
	RoleNormalUser    Role = "normal_user"
)

// UserType separates back-office users from group members
type UserType string

const (
	UserTypeAdmin  UserType = "admin"
	UserTypeMember UserType = "member"
)

// Principal is the authenticated caller
type Principal struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Role     Role     `json:"role"`
	UserType UserType `json:"user_type"`
	MemberID *int64   `json:"member_id,omitempty"`
}

// IsMember reports whether the principal is a group member
func (p *Principal) IsMember() bool {
	return p.UserType == UserTypeMember
}

// CanWrite reports whether the principal may mutate administrative data
func (p *Principal) CanWrite() bool {
	if p.UserType != UserTypeAdmin {
		return false
	}
	return p.Role == RoleAdministrator || p.Role == RoleSuperUser
}

// OwnsMember reports whether a member principal acts for memberID
func (p *Principal) OwnsMember(memberID int64) bool {
	return p.MemberID != nil && *p.MemberID == memberID
}

// Actor is the principal plus the client metadata recorded in audit entries
type Actor struct {
	Principal
	IPAddress string
	UserAgent string
}

// SystemActor is used when no request principal exists, e.g. from commands
var SystemActor = Actor{Principal: Principal{Username: "system", Role: RoleSuperUser, UserType: UserTypeAdmin}}

type principalKey struct{}

// WithPrincipal stores p on the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal from the context
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
