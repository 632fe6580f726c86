package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"event-aggregator/internal/domain"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func writeFieldError(w http.ResponseWriter, field, reason string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: field + ": " + reason,
		Field:   field,
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeFieldError(w, ve.Field, ve.Reason)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: err.Error(),
	})
}
