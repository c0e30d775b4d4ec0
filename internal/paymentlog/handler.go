package paymentlog

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/apperror"
	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler handles HTTP requests for the payment audit trail
type Handler struct {
	service *Service
}

// NewHandler creates a new payment log handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for payment log endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAdmin)
	r.Get("/", h.List)
	return r
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	ids := map[string]**int64{
		"payment_id":   &f.PaymentID,
		"group_id":     &f.GroupID,
		"member_id":    &f.MemberID,
		"performed_by": &f.PerformedBy,
	}
	for name, dst := range ids {
		id, ok := request.QueryID(r, name)
		if !ok {
			return f, apperror.Newf(apperror.KindValidation, "%s must be a positive integer", name)
		}
		*dst = id
	}

	f.Action = Action(q.Get("action"))

	times := map[string]**time.Time{"from": &f.From, "to": &f.To}
	for name, dst := range times {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		if err := validate.Var(name, raw, "datetime=2006-01-02"); err != nil {
			return f, err
		}
		t, _ := time.Parse("2006-01-02", raw)
		if name == "to" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*dst = &t
	}

	return f, nil
}

// List handles GET /payment-logs
// @Summary      List payment audit entries
// @Tags         payment-logs
// @Produce      json
// @Param        payment_id query int false "Payment ID"
// @Param        group_id query int false "Group ID"
// @Param        member_id query int false "Member ID"
// @Param        action query string false "Action" Enums(created, status_changed, updated, deleted, bulk_created, restored, permanently_deleted, archived)
// @Param        performed_by query int false "Acting user ID"
// @Param        from query string false "From date (YYYY-MM-DD)"
// @Param        to query string false "To date (YYYY-MM-DD), inclusive"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]Entry}
// @Failure      400 {object} response.APIResponse
// @Router       /payment-logs [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		response.FromError(w, err, "Invalid filter")
		return
	}

	page, perPage := request.Pagination(r)

	entries, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list payment logs")
		return
	}

	if entries == nil {
		entries = []*Entry{}
	}
	response.JSONWithMeta(w, http.StatusOK, entries, response.NewMeta(page, perPage, total))
}
