package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/kasmoni/pkg/middleware"
	"github.com/fkhayef/kasmoni/pkg/request"
	"github.com/fkhayef/kasmoni/pkg/response"
)

// Handler handles HTTP requests for notification operations
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for notification endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/unread-count", h.GetUnreadCount)
	r.Post("/{id}/read", h.MarkAsRead)
	r.Post("/read-all", h.MarkAllAsRead)

	return r
}

// recipient resolves the calling member. Notifications are addressed to
// members only.
func recipient(w http.ResponseWriter, r *http.Request) (int64, bool) {
	p, ok := middleware.GetPrincipal(r)
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return 0, false
	}
	if !p.IsMember() || p.MemberID == nil {
		response.Forbidden(w, "Notifications are only available to members")
		return 0, false
	}
	return *p.MemberID, true
}

// List handles GET /notifications
// @Summary      List notifications
// @Tags         notifications
// @Produce      json
// @Param        unread_only query bool false "Only unread"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]NotificationResponse}
// @Router       /notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	memberID, ok := recipient(w, r)
	if !ok {
		return
	}

	page, perPage := request.Pagination(r)
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	notifications, total, err := h.service.ListByRecipientID(r.Context(), memberID, page, perPage, unreadOnly)
	if err != nil {
		response.FromError(w, err, "Failed to list notifications")
		return
	}

	notificationResponses := make([]*NotificationResponse, len(notifications))
	for i, n := range notifications {
		notificationResponses[i] = n.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, notificationResponses, response.NewMeta(page, perPage, total))
}

// GetUnreadCount handles GET /notifications/unread-count
// @Summary      Count unread notifications
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse
// @Router       /notifications/unread-count [get]
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	memberID, ok := recipient(w, r)
	if !ok {
		return
	}

	count, err := h.service.GetUnreadCount(r.Context(), memberID)
	if err != nil {
		response.FromError(w, err, "Failed to get unread count")
		return
	}

	response.JSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// MarkAsRead handles POST /notifications/{id}/read
// @Summary      Mark a notification as read
// @Tags         notifications
// @Produce      json
// @Param        id path int true "Notification ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /notifications/{id}/read [post]
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := request.IDParam(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid notification ID")
		return
	}

	memberID, ok := recipient(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(r.Context(), id, memberID); err != nil {
		response.FromError(w, err, "Failed to mark notification as read")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// MarkAllAsRead handles POST /notifications/read-all
// @Summary      Mark all notifications as read
// @Tags         notifications
// @Produce      json
// @Success      200 {object} response.APIResponse
// @Router       /notifications/read-all [post]
func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	memberID, ok := recipient(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllAsRead(r.Context(), memberID); err != nil {
		response.FromError(w, err, "Failed to mark all notifications as read")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}
