package response

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fkhayef/kasmoni/pkg/apperror"
)

// APIResponse is the standard response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// APIError represents an error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Index points at the failing item of a batch request
	Index *int `json:"index,omitempty"`
}

// Meta contains pagination and other metadata
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// NewMeta builds pagination metadata
func NewMeta(page, perPage, total int) *Meta {
	totalPages := 0
	if perPage > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return &Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// JSON sends a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// JSONWithMeta sends a JSON response with pagination metadata
func JSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	}

	json.NewEncoder(w).Encode(response)
}

// Error sends an error JSON response
func Error(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, &APIError{Code: code, Message: message})
}

func writeError(w http.ResponseWriter, status int, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: false,
		Error:   apiErr,
	}

	json.NewEncoder(w).Encode(response)
}

// FromError maps a classified error to its status code. Unclassified errors
// are logged and answered with a generic message.
func FromError(w http.ResponseWriter, err error, fallback string) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		log.Printf("[ERROR] %s: %v", fallback, err)
		InternalError(w, fallback)
		return
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindInvalidAssignment:
		status = http.StatusUnprocessableEntity
	case apperror.KindConflict:
		status = http.StatusConflict
	case apperror.KindValidation:
		status = http.StatusBadRequest
	case apperror.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperror.KindForbidden:
		status = http.StatusForbidden
	case apperror.KindTransaction:
		status = http.StatusServiceUnavailable
		if ae.Err != nil {
			log.Printf("[ERROR] %s: %v: %v", fallback, err, ae.Err)
		} else {
			log.Printf("[ERROR] %s: %v", fallback, err)
		}
	}

	apiErr := &APIError{Code: string(ae.Kind), Message: ae.Error()}
	if idx, ok := apperror.IndexOf(err); ok {
		apiErr.Index = &idx
		apiErr.Message = ae.Message
	}
	writeError(w, status, apiErr)
}

// Common error responses
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message)
}
