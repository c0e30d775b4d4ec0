package group

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
	"github.com/fkhayef/kasmoni/pkg/validate"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints. Extra registrars mount
// read-only views owned by other packages under the same prefix.
func (h *Handler) Routes(extra ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/slots", h.GetSlots)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWriter)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)

		// Slot management
		r.Post("/{id}/slots", h.AddMember)
		r.Delete("/{id}/slots/{slotId}", h.RemoveSlot)
	})

	for _, register := range extra {
		register(r)
	}

	return r
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a savings group; the end month is derived from start month and duration
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	group, err := h.service.Create(r.Context(), &req)
	if err != nil {
		response.FromError(w, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse())
}

// GetByID handles GET /groups/{id}
// @Summary      Get group by ID
// @Description  Get a group with all its slot assignments
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	group, slots, err := h.service.GetByIDWithSlots(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "Failed to get group")
		return
	}

	if !h.visible(r, slots) {
		response.Forbidden(w, "You are not a member of this group")
		return
	}

	resp := group.ToResponse()
	resp.Slots = make([]*SlotResponse, len(slots))
	for i, s := range slots {
		resp.Slots[i] = s.ToResponse()
	}

	response.JSON(w, http.StatusOK, resp)
}

// List handles GET /groups
// @Summary      List groups
// @Description  Administrators see every group, members only the groups they hold a slot in
// @Tags         groups
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if p, ok := middleware.GetPrincipal(r); ok && p.IsMember() {
		groups, err := h.service.ListByMemberID(r.Context(), *p.MemberID)
		if err != nil {
			response.FromError(w, err, "Failed to list groups")
			return
		}
		response.JSON(w, http.StatusOK, toResponses(groups))
		return
	}

	page, perPage := request.Pagination(r)

	groups, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		response.FromError(w, err, "Failed to list groups")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toResponses(groups), response.NewMeta(page, perPage, total))
}

// Update handles PUT /groups/{id}
// @Summary      Update group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body UpdateGroupRequest true "Group update request"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req UpdateGroupRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	group, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		response.FromError(w, err, "Failed to update group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// Delete handles DELETE /groups/{id}
// @Summary      Delete group
// @Tags         groups
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		response.FromError(w, err, "Failed to delete group")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Group deleted successfully"})
}

// AddMember handles POST /groups/{id}/slots
// @Summary      Assign a member to a receive month
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body AddMemberRequest true "Slot assignment"
// @Success      201 {object} response.APIResponse{data=SlotResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /groups/{id}/slots [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req AddMemberRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		response.FromError(w, err, "Invalid request body")
		return
	}

	slot, err := h.service.AddMember(r.Context(), groupID, &req)
	if err != nil {
		response.FromError(w, err, "Failed to assign member")
		return
	}

	response.JSON(w, http.StatusCreated, slot.ToResponse())
}

// GetSlots handles GET /groups/{id}/slots
// @Summary      List slot assignments
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]SlotResponse}
// @Router       /groups/{id}/slots [get]
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	groupID, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	slots, err := h.service.GetSlots(r.Context(), groupID)
	if err != nil {
		response.FromError(w, err, "Failed to get slots")
		return
	}

	if !h.visible(r, slots) {
		response.Forbidden(w, "You are not a member of this group")
		return
	}

	slotResponses := make([]*SlotResponse, len(slots))
	for i, s := range slots {
		slotResponses[i] = s.ToResponse()
	}

	response.JSON(w, http.StatusOK, slotResponses)
}

// RemoveSlot handles DELETE /groups/{id}/slots/{slotId}
func (h *Handler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	groupID, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	slotID, ok := request.IDParam(r, "slotId")
	if !ok {
		response.BadRequest(w, "Invalid slot ID")
		return
	}

	if err := h.service.RemoveSlot(r.Context(), groupID, slotID); err != nil {
		response.FromError(w, err, "Failed to remove slot")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Slot removed successfully"})
}

// visible reports whether the caller may see a group with these slots
func (h *Handler) visible(r *http.Request, slots []*Slot) bool {
	p, ok := middleware.GetPrincipal(r)
	if !ok || !p.IsMember() {
		return true
	}
	for _, s := range slots {
		if p.OwnsMember(s.MemberID) {
			return true
		}
	}
	return false
}

func toResponses(groups []*Group) []*GroupResponse {
	groupResponses := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		groupResponses[i] = g.ToResponse()
	}
	return groupResponses
}
