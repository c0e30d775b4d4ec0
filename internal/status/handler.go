package status

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler exposes the status engine over HTTP
type Handler struct {
	engine *Engine
}

// NewHandler creates a new status handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes returns the router for /status
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAdmin)
	r.Get("/", h.GroupStatus)
	return r
}

// DashboardRoutes returns the router for /dashboard
func (h *Handler) DashboardRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAdmin)
	r.Get("/", h.Dashboard)
	return r
}

// RegisterGroupRoutes adds the per-group views under the /groups router
func (h *Handler) RegisterGroupRoutes(r chi.Router) {
	r.Get("/{id}/recipient", h.Recipient)
	r.With(middleware.RequireAdmin).Get("/{id}/grid", h.Grid)
}

// period reads ?period=, defaulting to the current month
func (h *Handler) period(r *http.Request) (string, error) {
	p := r.URL.Query().Get("period")
	if p == "" {
		return h.engine.Today(), nil
	}
	if err := validate.Var("period", p, "period"); err != nil {
		return "", err
	}
	return p, nil
}

// GroupStatus handles GET /status
// @Summary      Group statuses for a period
// @Description  Classify every active group as fully_paid, pending or not_paid
// @Tags         status
// @Produce      json
// @Param        period query string false "Billing period (YYYY-MM), defaults to the current month"
// @Success      200 {object} response.APIResponse{data=[]GroupState}
// @Failure      400 {object} response.APIResponse
// @Router       /status [get]
func (h *Handler) GroupStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		response.FromError(w, err, "Invalid period")
		return
	}

	states, err := h.engine.DeriveGroupStatus(r.Context(), p)
	if err != nil {
		response.FromError(w, err, "Failed to derive group status")
		return
	}

	response.JSON(w, http.StatusOK, states)
}

// Dashboard handles GET /dashboard
// @Summary      Dashboard totals
// @Tags         status
// @Produce      json
// @Param        period query string false "Billing period (YYYY-MM)"
// @Success      200 {object} response.APIResponse{data=Dashboard}
// @Router       /dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		response.FromError(w, err, "Invalid period")
		return
	}

	stats, err := h.engine.DashboardStats(r.Context(), p)
	if err != nil {
		response.FromError(w, err, "Failed to load dashboard")
		return
	}

	response.JSON(w, http.StatusOK, stats)
}

// Recipient handles GET /groups/{id}/recipient
// @Summary      Payout recipient for a period
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        period query string false "Billing period (YYYY-MM)"
// @Success      200 {object} response.APIResponse{data=Recipient}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id}/recipient [get]
func (h *Handler) Recipient(w http.ResponseWriter, r *http.Request) {
	groupID, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	p, err := h.period(r)
	if err != nil {
		response.FromError(w, err, "Invalid period")
		return
	}

	if principal, ok := middleware.GetPrincipal(r); ok && principal.IsMember() {
		holds, err := h.engine.HoldsSlot(r.Context(), groupID, *principal.MemberID)
		if err != nil {
			response.FromError(w, err, "Failed to derive recipient")
			return
		}
		if !holds {
			response.Forbidden(w, "You are not a member of this group")
			return
		}
	}

	recipient, err := h.engine.DeriveRecipient(r.Context(), groupID, p)
	if err != nil {
		response.FromError(w, err, "Failed to derive recipient")
		return
	}

	// A group without a recipient this period answers with null data
	response.JSON(w, http.StatusOK, recipient)
}

// Grid handles GET /groups/{id}/grid
// @Summary      Slot payment grid for a period
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        period query string false "Billing period (YYYY-MM)"
// @Success      200 {object} response.APIResponse{data=[]GridRow}
// @Router       /groups/{id}/grid [get]
func (h *Handler) Grid(w http.ResponseWriter, r *http.Request) {
	groupID, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	p, err := h.period(r)
	if err != nil {
		response.FromError(w, err, "Invalid period")
		return
	}

	rows, err := h.engine.GroupPaymentGrid(r.Context(), groupID, p)
	if err != nil {
		response.FromError(w, err, "Failed to load payment grid")
		return
	}

	response.JSON(w, http.StatusOK, rows)
}
