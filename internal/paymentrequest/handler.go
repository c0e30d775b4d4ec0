package paymentrequest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/apperror"
	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler handles HTTP requests for payment requests
type Handler struct {
	service *Service
}

// NewHandler creates a new payment request handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for payment request endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Submit)
	r.Get("/{id}", h.GetByID)
	r.With(middleware.RequireWriter).Post("/{id}/review", h.Review)

	return r
}

// Submit handles POST /payment-requests
// @Summary      Submit a payment request
// @Description  Members report a payment they made; an administrator reviews it
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Payment request"
// @Success      201 {object} response.APIResponse{data=PaymentRequestResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /payment-requests [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req SubmitRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	pr, err := h.service.Submit(r.Context(), p, &req)
	if err != nil {
		response.FromError(w, err, "Failed to submit payment request")
		return
	}

	response.JSON(w, http.StatusCreated, pr.ToResponse())
}

// GetByID handles GET /payment-requests/{id}
// @Summary      Get payment request by ID
// @Tags         payment-requests
// @Produce      json
// @Param        id path int true "Payment request ID"
// @Success      200 {object} response.APIResponse{data=PaymentRequestResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payment-requests/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment request ID")
		return
	}

	pr, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get payment request")
		return
	}

	if p, ok := middleware.GetPrincipal(r); ok && p.IsMember() && !p.OwnsMember(pr.MemberID) {
		response.NotFound(w, "payment request not found")
		return
	}

	response.JSON(w, http.StatusOK, pr.ToResponse())
}

// List handles GET /payment-requests
// @Summary      List payment requests
// @Description  Members only see their own requests
// @Tags         payment-requests
// @Produce      json
// @Param        status query string false "Status" Enums(pending_approval, approved, rejected)
// @Param        group_id query int false "Group ID"
// @Param        member_id query int false "Member ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]PaymentRequestResponse}
// @Router       /payment-requests [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := request.Pagination(r)

	var (
		requests []*PaymentRequest
		total    int
		err      error
	)

	if p, ok := middleware.GetPrincipal(r); ok && p.IsMember() {
		requests, total, err = h.service.ListForMember(r.Context(), *p.MemberID, page, perPage)
	} else {
		var f Filter
		f, err = parseFilter(r)
		if err != nil {
			response.FromError(w, err, "Invalid filter")
			return
		}
		requests, total, err = h.service.List(r.Context(), f, page, perPage)
	}
	if err != nil {
		response.FromError(w, err, "Failed to list payment requests")
		return
	}

	requestResponses := make([]*PaymentRequestResponse, len(requests))
	for i, pr := range requests {
		requestResponses[i] = pr.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, requestResponses, response.NewMeta(page, perPage, total))
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter

	if raw := r.URL.Query().Get("status"); raw != "" {
		if err := validate.Var("status", raw, "oneof=pending_approval approved rejected"); err != nil {
			return f, err
		}
		f.Status = Status(raw)
	}

	groupID, ok := request.QueryID(r, "group_id")
	if !ok {
		return f, apperror.New(apperror.KindValidation, "group_id must be a positive integer")
	}
	memberID, ok := request.QueryID(r, "member_id")
	if !ok {
		return f, apperror.New(apperror.KindValidation, "member_id must be a positive integer")
	}
	f.GroupID, f.MemberID = groupID, memberID

	return f, nil
}

// Review handles POST /payment-requests/{id}/review
// @Summary      Approve or reject a payment request
// @Description  Approval creates a pending payment; override fields replace the submitted values
// @Tags         payment-requests
// @Accept       json
// @Produce      json
// @Param        id path int true "Payment request ID"
// @Param        request body ReviewRequest true "Decision"
// @Success      200 {object} response.APIResponse{data=PaymentRequestResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payment-requests/{id}/review [post]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment request ID")
		return
	}

	var req ReviewRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	pr, err := h.service.Review(r.Context(), middleware.ActorFromRequest(r), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to review payment request")
		return
	}

	response.JSON(w, http.StatusOK, pr.ToResponse())
}
