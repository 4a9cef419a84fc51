package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/session"
)

// errorBody is the error payload of every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// statusFor maps an error to its HTTP status, code and client message.
func statusFor(err error) (int, errors.Code, string) {
	switch {
	case stderrors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errors.ErrCodeNotFound, "run not found or expired"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errors.ErrCodeInternal, "request timed out"
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, errors.ErrCodeInternal, "request cancelled"
	}

	code := errors.GetCode(err)
	switch code {
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidConfiguration,
		errors.ErrCodeInvalidFormat,
		errors.ErrCodeNoConfigurationSelected:
		return http.StatusBadRequest, code, errors.UserMessage(err)
	case errors.ErrCodeUnknownConfiguration, errors.ErrCodeNotFound:
		return http.StatusNotFound, code, errors.UserMessage(err)
	case errors.ErrCodeStorageUnattainable,
		errors.ErrCodeConstraintExceeded,
		errors.ErrCodePerformanceUnattainable:
		return http.StatusUnprocessableEntity, code, errors.UserMessage(err)
	case "":
		return http.StatusInternalServerError, errors.ErrCodeInternal, "internal error"
	}
	return http.StatusInternalServerError, code, errors.UserMessage(err)
}

// writeError writes err as an error body. Server-side failures are logged.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "err", err)
	}
	writeErrorBody(w, status, code, msg)
}

func writeErrorBody(w http.ResponseWriter, status int, code errors.Code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

// decodeJSON decodes a bounded request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.New(errors.ErrCodeInvalidFormat, "request body is required")
		}
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid request body: %v", err)
	}
	if dec.More() {
		return errors.New(errors.ErrCodeInvalidFormat, "request body must hold a single JSON object")
	}
	return nil
}
