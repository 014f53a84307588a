/*
Package resp writes the standardized JSON envelope used by the HTTP endpoints
(health, stats, and rejected websocket upgrades).
*/
package resp

import (
	"encoding/json"
	"net/http"

	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/logx"
)

// JSONResponse is the envelope returned by every HTTP endpoint.
type JSONResponse struct {
	// Code is 0 on success, otherwise an errs code.
	Code int `json:"code"`

	Message string `json:"message"`

	Data any `json:"data,omitempty"`
}

// RespondJSON marshals payload and writes it with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "path", r.URL.Path)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)

	if _, err := w.Write(response); err != nil {
		logx.Warn("Failed to write JSON response", "error", err.Error())
	}
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError sends customErr using its HTTP status. A nil error is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status == http.StatusOK {
		status = http.StatusBadRequest
	}

	RespondJSON(w, r, status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
