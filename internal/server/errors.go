package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/vectordb"
)

type errorResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", ErrorType: errType, Message: msg})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "validation", msg)
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, "not_found", msg)
}

// writeServiceError maps a collaborator failure onto the HTTP error taxonomy.
// Store failures become store_error 500; everything else is classified by
// its LLM error kind.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *vectordb.StoreError
	if errors.As(err, &se) {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	kind := llm.KindOf(err)
	writeError(w, statusForKind(kind), string(kind), err.Error())
}

func statusForKind(kind llm.ErrorKind) int {
	switch kind {
	case llm.KindValidation:
		return http.StatusBadRequest
	case llm.KindRateLimit, llm.KindCostLimit:
		return http.StatusTooManyRequests
	case llm.KindAuth:
		return http.StatusUnauthorized
	case llm.KindConnection:
		return http.StatusServiceUnavailable
	case llm.KindTimeout:
		return http.StatusGatewayTimeout
	case llm.KindAPIError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
