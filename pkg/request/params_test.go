package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestPagination(t *testing.T) {
	tests := []struct {
		query string
		page  int
		per   int
	}{
		{"", 1, 20},
		{"?page=3&per_page=50", 3, 50},
		{"?page=-1&per_page=1000", 1, 20},
		{"?page=abc", 1, 20},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		page, per := Pagination(req)
		if page != tt.page || per != tt.per {
			t.Errorf("Pagination(%q) = %d,%d want %d,%d", tt.query, page, per, tt.page, tt.per)
		}
	}
}

func TestIDParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "15")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, ok := IDParam(req, "id")
	if !ok || id != 15 {
		t.Errorf("IDParam = %d,%v", id, ok)
	}
	if _, ok := IDParam(req, "missing"); ok {
		t.Error("missing param accepted")
	}
}

func TestQueryID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?group_id=4&member_id=x", nil)
	if id, ok := QueryID(req, "group_id"); !ok || id == nil || *id != 4 {
		t.Errorf("group_id = %v,%v", id, ok)
	}
	if _, ok := QueryID(req, "member_id"); ok {
		t.Error("invalid member_id accepted")
	}
	if id, ok := QueryID(req, "absent"); !ok || id != nil {
		t.Errorf("absent = %v,%v", id, ok)
	}
}
