package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"agrichain_go/ledger"
	"agrichain_go/supply"
	"agrichain_go/utils"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Count   int         `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		utils.LogError("Failed to encode response: %v", err)
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func respondList(w http.ResponseWriter, count int, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Count: count, Data: data})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: message})
}

// respondError maps a service error onto an HTTP status and writes the
// envelope. Every failure is scoped to the one request.
func respondError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Response{Success: false, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, supply.ErrUserNotFound),
		errors.Is(err, supply.ErrProductNotFound),
		errors.Is(err, supply.ErrRequestNotFound),
		errors.Is(err, ledger.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, supply.ErrNotCurrentOwner):
		return http.StatusForbidden
	case errors.Is(err, supply.ErrDuplicateEmail),
		errors.Is(err, ledger.ErrDuplicateBlockNumber):
		return http.StatusConflict
	case errors.Is(err, supply.ErrNotFarmer),
		errors.Is(err, supply.ErrInvalidRolePair),
		errors.Is(err, supply.ErrRequestProcessed),
		errors.Is(err, supply.ErrProductUnavailable),
		errors.Is(err, supply.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
