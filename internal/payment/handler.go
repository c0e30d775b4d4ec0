package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/pkg/apperror"
	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler handles HTTP requests for payments, the trashbox and the archive
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for payment endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWriter)
		r.Post("/", h.Create)
		r.Post("/bulk", h.CreateBulk)
		r.Put("/status/bulk", h.BulkSetStatus)
		r.Post("/archive/bulk", h.ArchiveBulk)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/status", h.SetStatus)
		r.Post("/{id}/archive", h.Archive)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

// TrashRoutes returns the router for /trashbox
func (h *Handler) TrashRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAdmin)

	r.Get("/", h.ListTrash)
	r.Get("/{id}", h.GetTrash)
	r.With(middleware.RequireWriter).Post("/{id}/restore", h.Restore)
	r.With(middleware.RequireRole(auth.RoleSuperUser)).Delete("/{id}", h.PurgeTrash)

	return r
}

// ArchiveRoutes returns the router for /archive
func (h *Handler) ArchiveRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireAdmin)
	r.Get("/", h.ListArchive)
	return r
}

// Create handles POST /payments
// @Summary      Record a payment
// @Description  Record a member's contribution toward one of their slots
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body CreatePaymentRequest true "Payment"
// @Success      201 {object} response.APIResponse{data=PaymentResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /payments [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	p, err := h.service.Create(r.Context(), middleware.ActorFromRequest(r), &req)
	if err != nil {
		response.FromError(w, err, "Failed to create payment")
		return
	}

	response.JSON(w, http.StatusCreated, p.ToResponse())
}

// CreateBulk handles POST /payments/bulk
// @Summary      Record payments in bulk
// @Description  Upsert payments for one group and period atomically; a failing item is reported with its index
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body BulkCreateRequest true "Bulk payments"
// @Success      201 {object} response.APIResponse{data=[]PaymentResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /payments/bulk [post]
func (h *Handler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	payments, err := h.service.CreateBulk(r.Context(), middleware.ActorFromRequest(r), &req)
	if err != nil {
		response.FromError(w, err, "Failed to create payments")
		return
	}

	response.JSON(w, http.StatusCreated, toResponses(payments))
}

// GetByID handles GET /payments/{id}
// @Summary      Get payment by ID
// @Tags         payments
// @Produce      json
// @Param        id path int true "Payment ID"
// @Success      200 {object} response.APIResponse{data=PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payments/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get payment")
		return
	}

	if pr, ok := middleware.GetPrincipal(r); ok && pr.IsMember() && !pr.OwnsMember(p.MemberID) {
		response.NotFound(w, "payment not found")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse())
}

// List handles GET /payments
// @Summary      List payments
// @Description  Members only ever see their own payments
// @Tags         payments
// @Produce      json
// @Param        group_id query int false "Group ID"
// @Param        member_id query int false "Member ID"
// @Param        payment_month query string false "Billing period (YYYY-MM)"
// @Param        slot query string false "Payout month (YYYY-MM)"
// @Param        status query string false "Status" Enums(not_paid, pending, received, settled)
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]PaymentResponse}
// @Router       /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		response.FromError(w, err, "Invalid filter")
		return
	}

	if p, ok := middleware.GetPrincipal(r); ok && p.IsMember() {
		f.MemberID = p.MemberID
	}

	page, perPage := request.Pagination(r)

	payments, total, err := h.service.List(r.Context(), f, page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list payments")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toResponses(payments), response.NewMeta(page, perPage, total))
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	groupID, ok := request.QueryID(r, "group_id")
	if !ok {
		return f, apperror.New(apperror.KindValidation, "group_id must be a positive integer")
	}
	memberID, ok := request.QueryID(r, "member_id")
	if !ok {
		return f, apperror.New(apperror.KindValidation, "member_id must be a positive integer")
	}
	f.GroupID, f.MemberID = groupID, memberID

	for name, dst := range map[string]*string{"payment_month": &f.PaymentMonth, "slot": &f.Slot} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		if err := validate.Var(name, v, "period"); err != nil {
			return f, err
		}
		*dst = v
	}

	if raw := q.Get("status"); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			return f, validate.Var("status", raw, "oneof=not_paid pending received settled")
		}
		f.Status = st
	}

	return f, nil
}

// SetStatus handles PUT /payments/{id}/status
// @Summary      Change payment status
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path int true "Payment ID"
// @Param        request body UpdateStatusRequest true "New status"
// @Success      200 {object} response.APIResponse{data=PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payments/{id}/status [put]
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	var req UpdateStatusRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	p, err := h.service.SetStatus(r.Context(), middleware.ActorFromRequest(r), id, req.Status)
	if err != nil {
		response.FromError(w, err, "Failed to update payment status")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse())
}

// BulkSetStatus handles PUT /payments/status/bulk
// @Summary      Change the status of several payments
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body BulkStatusRequest true "Payment IDs and status"
// @Success      200 {object} response.APIResponse{data=[]PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /payments/status/bulk [put]
func (h *Handler) BulkSetStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	payments, err := h.service.BulkSetStatus(r.Context(), middleware.ActorFromRequest(r), req.IDs, req.Status)
	if err != nil {
		response.FromError(w, err, "Failed to update payment statuses")
		return
	}

	response.JSON(w, http.StatusOK, toResponses(payments))
}

// Update handles PUT /payments/{id}
// @Summary      Edit a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path int true "Payment ID"
// @Param        request body UpdatePaymentRequest true "Fields to change"
// @Success      200 {object} response.APIResponse{data=PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /payments/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	var req UpdatePaymentRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	p, err := h.service.Update(r.Context(), middleware.ActorFromRequest(r), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to update payment")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse())
}

// Delete handles DELETE /payments/{id}
// @Summary      Move a payment to the trashbox
// @Tags         payments
// @Param        id path int true "Payment ID"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /payments/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	if err := h.service.SoftDelete(r.Context(), middleware.ActorFromRequest(r), id); err != nil {
		response.FromError(w, err, "Failed to delete payment")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Payment moved to trashbox"})
}

// Archive handles POST /payments/{id}/archive
// @Summary      Archive a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path int true "Payment ID"
// @Param        request body ArchiveRequest false "Archive reason"
// @Success      200 {object} response.APIResponse{data=ArchiveEntry}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payments/{id}/archive [post]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid payment ID")
		return
	}

	var req ArchiveRequest
	if r.ContentLength != 0 {
		if err := validate.Decode(r.Body, &req); err != nil {
			response.FromError(w, err, "Invalid request body")
			return
		}
	}

	entry, err := h.service.Archive(r.Context(), middleware.ActorFromRequest(r), id, req.Reason)
	if err != nil {
		response.FromError(w, err, "Failed to archive payment")
		return
	}

	response.JSON(w, http.StatusOK, entry)
}

// ArchiveBulk handles POST /payments/archive/bulk
// @Summary      Archive several payments
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body BulkArchiveRequest true "Payment IDs and reason"
// @Success      200 {object} response.APIResponse{data=[]ArchiveEntry}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /payments/archive/bulk [post]
func (h *Handler) ArchiveBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkArchiveRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	entries, err := h.service.ArchiveBulk(r.Context(), middleware.ActorFromRequest(r), req.IDs, req.Reason)
	if err != nil {
		response.FromError(w, err, "Failed to archive payments")
		return
	}

	response.JSON(w, http.StatusOK, entries)
}

// ListTrash handles GET /trashbox
// @Summary      List soft-deleted payments
// @Tags         trashbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]TrashEntry}
// @Router       /trashbox [get]
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	page, perPage := request.Pagination(r)

	entries, total, err := h.service.ListTrash(r.Context(), page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list trashbox")
		return
	}
	if entries == nil {
		entries = []*TrashEntry{}
	}

	response.JSONWithMeta(w, http.StatusOK, entries, response.NewMeta(page, perPage, total))
}

// GetTrash handles GET /trashbox/{id}
func (h *Handler) GetTrash(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid trash entry ID")
		return
	}

	entry, err := h.service.GetTrash(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get trash entry")
		return
	}

	response.JSON(w, http.StatusOK, entry)
}

// Restore handles POST /trashbox/{id}/restore
// @Summary      Restore a soft-deleted payment
// @Tags         trashbox
// @Produce      json
// @Param        id path int true "Trash entry ID"
// @Success      200 {object} response.APIResponse{data=PaymentResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /trashbox/{id}/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid trash entry ID")
		return
	}

	p, err := h.service.Restore(r.Context(), middleware.ActorFromRequest(r), id)
	if err != nil {
		response.FromError(w, err, "Failed to restore payment")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse())
}

// PurgeTrash handles DELETE /trashbox/{id}
// @Summary      Permanently delete a trashed payment
// @Description  Restricted to super users
// @Tags         trashbox
// @Param        id path int true "Trash entry ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /trashbox/{id} [delete]
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid trash entry ID")
		return
	}

	if err := h.service.PurgeTrash(r.Context(), middleware.ActorFromRequest(r), id); err != nil {
		response.FromError(w, err, "Failed to delete trash entry")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Payment permanently deleted"})
}

// ListArchive handles GET /archive
// @Summary      List archived payments
// @Tags         archive
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ArchiveEntry}
// @Router       /archive [get]
func (h *Handler) ListArchive(w http.ResponseWriter, r *http.Request) {
	page, perPage := request.Pagination(r)

	entries, total, err := h.service.ListArchive(r.Context(), page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list archive")
		return
	}
	if entries == nil {
		entries = []*ArchiveEntry{}
	}

	response.JSONWithMeta(w, http.StatusOK, entries, response.NewMeta(page, perPage, total))
}

func toResponses(payments []*Payment) []*PaymentResponse {
	paymentResponses := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		paymentResponses[i] = p.ToResponse()
	}
	return paymentResponses
}
