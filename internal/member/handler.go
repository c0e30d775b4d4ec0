package member

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler handles HTTP requests for member operations
type Handler struct {
	service *Service
}

// NewHandler creates a new member handler with service dependency injected
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for member endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Get("/{id}", h.GetByID)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWriter)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

// Create handles POST /members
// @Summary      Register a member
// @Description  Register a new member with contact and banking details
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        request body CreateMemberRequest true "Member registration request"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /members [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	m, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to create member")
		return
	}

	response.JSON(w, http.StatusCreated, m.ToResponse())
}

// GetByID handles GET /members/{id}
// @Summary      Get member by ID
// @Tags         members
// @Produce      json
// @Param        id path int true "Member ID"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /members/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid member ID")
		return
	}

	if p, ok := middleware.GetPrincipal(r); ok && p.IsMember() && !p.OwnsMember(id) {
		response.Forbidden(w, "You can only view your own profile")
		return
	}

	m, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get member")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// Me handles GET /members/me for member principals
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r)
	if !ok || p.MemberID == nil {
		response.NotFound(w, "No member profile is linked to this account")
		return
	}

	m, err := h.service.GetByID(r.Context(), *p.MemberID)
	if err != nil {
		response.FromError(w, err, "Failed to get member")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// List handles GET /members
// @Summary      List members
// @Tags         members
// @Produce      json
// @Param        search query string false "Name or email filter"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Router       /members [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := request.Pagination(r)

	members, total, err := h.service.List(r.Context(), r.URL.Query().Get("search"), page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list members")
		return
	}

	memberResponses := make([]*MemberResponse, len(members))
	for i, m := range members {
		memberResponses[i] = m.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, memberResponses, response.NewMeta(page, perPage, total))
}

// Update handles PUT /members/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid member ID")
		return
	}

	var req UpdateMemberRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	m, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to update member")
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// Delete handles DELETE /members/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid member ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.FromError(w, err, "Failed to delete member")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member deleted successfully"})
}
