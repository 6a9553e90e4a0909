package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/querylab/sift/internal/types"
)

// errorResponse is the JSON error body. Fields is present only for field
// resolution failures and names every bad path in the request.
type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// writeError maps a search pipeline error to an HTTP status and JSON body.
// Client mistakes (grammar, unknown fields, bad operators, depth) map to 400.
// Missing rows map to 404. Everything else is a 500 with the raw message
// suppressed so backend details don't leak.
func writeError(w http.ResponseWriter, err error) {
	var invalid *types.InvalidFieldError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  invalid.Error(),
			Fields: invalid.Fields,
		})
		return
	}

	var resolution *types.FieldResolutionError
	if errors.As(err, &resolution) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  resolution.Error(),
			Fields: []string{resolution.Path},
		})
		return
	}

	switch {
	case errors.Is(err, types.ErrMalformedFilter),
		errors.Is(err, types.ErrMalformedOrdering),
		errors.Is(err, types.ErrMalformedPath),
		errors.Is(err, types.ErrFilterTooDeep),
		errors.Is(err, types.ErrUnknownOperator),
		errors.Is(err, types.ErrOperatorMismatch),
		errors.Is(err, types.ErrTooManyInValues),
		errors.Is(err, types.ErrEntityNotFound):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, sql.ErrNoRows):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
