package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.Internal
	msg := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		code, msg = appErr.Code, appErr.Message
	}
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code.String()})
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.NotFound, apperrors.TemplateNotFound:
		return http.StatusNotFound
	case apperrors.InvalidArgument, apperrors.TemplateInvalid, apperrors.ConfigInvalid:
		return http.StatusBadRequest
	case apperrors.Unavailable, apperrors.CaptureFailed:
		return http.StatusServiceUnavailable
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid request body")
	}
	return nil
}
