package http

import (
	"errors"
	"net/http"
	"sort"

	"accelerator-portal/internal/backend"
	domain "accelerator-portal/internal/domain/application"
	"accelerator-portal/internal/intake"

	"github.com/labstack/echo/v4"
)

// envelope is the JSON API response shape, the wire form of backend.Result.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

func respondOK(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Success: true, Data: data})
}

func respondFail(c echo.Context, code int, msg string, details []FieldError) error {
	if msg == "" {
		msg = backend.MsgUnexpected
	}
	return c.JSON(code, envelope{Message: msg, Details: details})
}

// statusFor maps domain errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalid):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func formDetails(fe intake.FieldErrors) []FieldError {
	out := make([]FieldError, 0, len(fe))
	for k, v := range fe {
		out = append(out, FieldError{Field: k, Message: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
