// Package handlers implements the host-ward JSON/SSE surface of §6: job
// CRUD and lifecycle, the subscriber fan-out transport, and a health
// summary. The templated HTML presentation layer is out of scope (spec §1).
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/molotovsingh/personal-backup-tool/internal/errs"
)

// AppError is a structured error response.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewError builds an AppError.
func NewError(code int, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// HandleError maps a domain sentinel (internal/errs) or an AppError onto
// the appropriate HTTP status and writes the JSON response.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, appErr)
		return
	}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, NewError(http.StatusNotFound, "resource not found", err.Error()))
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, NewError(http.StatusConflict, "resource already exists", err.Error()))
	case errors.Is(err, errs.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, NewError(http.StatusConflict, "job already running", err.Error()))
	case errors.Is(err, errs.ErrNotRunning):
		c.JSON(http.StatusConflict, NewError(http.StatusConflict, "job not running", err.Error()))
	case errors.Is(err, errs.ErrPreFlight):
		c.JSON(http.StatusUnprocessableEntity, NewError(http.StatusUnprocessableEntity, "pre-flight check failed", err.Error()))
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, NewError(http.StatusBadRequest, "invalid input", err.Error()))
	case errors.Is(err, errs.ErrToolMissing):
		c.JSON(http.StatusFailedDependency, NewError(http.StatusFailedDependency, "transfer tool not installed", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, NewError(http.StatusInternalServerError, "internal error", err.Error()))
	}
}

// NotFoundHandler handles unmatched routes.
func NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, NewError(http.StatusNotFound, "resource not found", ""))
}
