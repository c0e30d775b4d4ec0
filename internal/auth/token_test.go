package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/fkhayef/kasmoni/pkg/apperror"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	memberID := int64(42)
	token, err := svc.Issue(&Principal{ID: 7, Username: "mira", Role: RoleNormalUser, UserType: UserTypeMember, MemberID: &memberID})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	p, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ID != 7 || p.Username != "mira" || p.Role != RoleNormalUser {
		t.Errorf("unexpected principal %+v", p)
	}
	if !p.IsMember() || !p.OwnsMember(42) || p.OwnsMember(43) {
		t.Errorf("member ownership not carried: %+v", p)
	}
	if p.CanWrite() {
		t.Error("member principals must not write")
	}
}

func TestVerifyRejects(t *testing.T) {
	svc, _ := NewTokenService("secret", time.Hour)
	other, _ := NewTokenService("other-secret", time.Hour)

	foreign, _ := other.Issue(&Principal{ID: 1, Username: "a", Role: RoleAdministrator, UserType: UserTypeAdmin})
	if _, err := svc.Verify(foreign); !errors.Is(err, apperror.Unauthorized) {
		t.Errorf("foreign signature: got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := svc.Issue(&Principal{ID: 1, Username: "a", Role: RoleAdministrator, UserType: UserTypeAdmin})
	svc.now = time.Now
	if _, err := svc.Verify(expired); !errors.Is(err, apperror.Unauthorized) {
		t.Errorf("expired token: got %v", err)
	}

	badRole, _ := svc.Issue(&Principal{ID: 1, Username: "a", Role: "root", UserType: UserTypeAdmin})
	if _, err := svc.Verify(badRole); err == nil {
		t.Error("unknown role accepted")
	}

	for _, userType := range []UserType{"", "guest"} {
		token, _ := svc.Issue(&Principal{ID: 1, Username: "a", Role: RoleAdministrator, UserType: userType})
		if _, err := svc.Verify(token); !errors.Is(err, apperror.Unauthorized) {
			t.Errorf("user type %q: got %v", userType, err)
		}
	}

	memberID := int64(7)
	noMember, _ := svc.Issue(&Principal{ID: 1, Username: "m", Role: RoleNormalUser, UserType: UserTypeMember})
	if _, err := svc.Verify(noMember); err == nil {
		t.Error("member token without member id accepted")
	}
	member, _ := svc.Issue(&Principal{ID: 1, Username: "m", Role: RoleNormalUser, UserType: UserTypeMember, MemberID: &memberID})
	if _, err := svc.Verify(member); err != nil {
		t.Errorf("member token rejected: %v", err)
	}

	if _, err := svc.Verify("not-a-token"); err == nil {
		t.Error("garbage accepted")
	}
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		p    Principal
		want bool
	}{
		{Principal{Role: RoleAdministrator, UserType: UserTypeAdmin}, true},
		{Principal{Role: RoleSuperUser, UserType: UserTypeAdmin}, true},
		{Principal{Role: RoleNormalUser, UserType: UserTypeAdmin}, false},
		{Principal{Role: RoleAdministrator, UserType: UserTypeMember}, false},
	}
	for _, tt := range tests {
		if got := tt.p.CanWrite(); got != tt.want {
			t.Errorf("CanWrite(%s/%s) = %v, want %v", tt.p.Role, tt.p.UserType, got, tt.want)
		}
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("", time.Hour); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}
