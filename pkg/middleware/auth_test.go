package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fkhayef/kasmoni/internal/auth"
)

type stubVerifier struct {
	principal *auth.Principal
	err       error
}

func (s *stubVerifier) Verify(token string) (*auth.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	admin := &auth.Principal{ID: 1, Username: "admin", Role: auth.RoleAdministrator, UserType: auth.UserTypeAdmin}

	tests := []struct {
		name     string
		header   string
		verifier *stubVerifier
		want     int
	}{
		{"missing header", "", &stubVerifier{principal: admin}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", &stubVerifier{principal: admin}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", &stubVerifier{err: errors.New("bad")}, http.StatusUnauthorized},
		{"valid token", "Bearer abc", &stubVerifier{principal: admin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(tt.verifier)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireWriter(t *testing.T) {
	tests := []struct {
		name string
		p    *auth.Principal
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"normal user", &auth.Principal{Role: auth.RoleNormalUser, UserType: auth.UserTypeAdmin}, http.StatusForbidden},
		{"administrator", &auth.Principal{Role: auth.RoleAdministrator, UserType: auth.UserTypeAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.p != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), tt.p))
			}
			rec := httptest.NewRecorder()
			RequireWriter(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{Role: auth.RoleAdministrator, UserType: auth.UserTypeAdmin}))
	rec := httptest.NewRecorder()
	RequireRole(auth.RoleSuperUser)(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("administrator on super_user route: status = %d", rec.Code)
	}
}

func TestActorFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	req.Header.Set("User-Agent", "kasmoni-test")
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{ID: 3, Username: "treasurer"}))

	actor := ActorFromRequest(req)
	if actor.ID != 3 || actor.Username != "treasurer" {
		t.Errorf("principal not copied: %+v", actor)
	}
	if actor.IPAddress != "10.0.0.5" || actor.UserAgent != "kasmoni-test" {
		t.Errorf("client metadata = %q / %q", actor.IPAddress, actor.UserAgent)
	}
}
