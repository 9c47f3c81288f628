package api

import (
	"encoding/json"
	"net/http"

	"github.com/tranmanhhung/sn111/internal/errors"
)

// ErrorResponse is the JSON shape of every error payload.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    errors.Code `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// WriteError writes a JSON error response with the given status.
func WriteError(w http.ResponseWriter, status int, message string, code errors.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// WriteMinerError writes an error response with the status mapped from
// the error's code.
func WriteMinerError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	WriteError(w, MapErrorToStatus(code), err.Error(), code)
}

// MapErrorToStatus maps miner error codes to HTTP status codes.
func MapErrorToStatus(code errors.Code) int {
	switch code {
	case errors.NotFound:
		return http.StatusNotFound // 404
	case errors.TaskTimeout:
		return http.StatusGatewayTimeout // 504
	case errors.RequestTimeout:
		return http.StatusGatewayTimeout // 504
	case errors.PoolExhausted:
		return http.StatusServiceUnavailable // 503
	case errors.StoreUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.InvalidArgument:
		return http.StatusBadRequest // 400
	case errors.Unauthorized:
		return http.StatusUnauthorized // 401
	case errors.Internal:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a successful JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, errors.InvalidArgument)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, errors.NotFound)
}

// InternalError writes a 500 error.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, errors.Internal)
}
