package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"gowa-keeper/internal/service"
)

// SuccessResponse writes the standard success envelope.
func SuccessResponse(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// ErrorResponse writes the standard error envelope.
func ErrorResponse(c echo.Context, status int, message, code, details string) error {
	errObj := map[string]string{"code": code}
	if details != "" {
		errObj["details"] = details
	}
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errObj,
	})
}

// serviceError maps lifecycle errors onto HTTP responses.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInstanceNotFound):
		return ErrorResponse(c, 404, "Instance not found", "INSTANCE_NOT_FOUND", "Please create the instance first")
	case errors.Is(err, service.ErrInstanceExists):
		return ErrorResponse(c, 409, "Instance already exists", "INSTANCE_EXISTS", "Use a different instance id or destroy the existing one")
	case errors.Is(err, service.ErrInstanceNotReady):
		return ErrorResponse(c, 400, "Instance is not ready", "NOT_READY", "Please check /status and wait until the instance is ready")
	case errors.Is(err, service.ErrRecoveryFailed):
		return ErrorResponse(c, 503, "Session recovery failed", "RECOVERY_FAILED", "Reinitialize the instance manually")
	case errors.Is(err, service.ErrMaxReconnects):
		return ErrorResponse(c, 410, "Instance exhausted its reconnect attempts", "MAX_RECONNECTS_EXCEEDED", "Destroy and re-create the instance")
	case errors.Is(err, service.ErrInitializeTimeout):
		return ErrorResponse(c, 504, "Initialization timed out", "INITIALIZE_TIMEOUT", "")
	default:
		return ErrorResponse(c, 500, "Internal error", "INTERNAL_ERROR", err.Error())
	}
}
