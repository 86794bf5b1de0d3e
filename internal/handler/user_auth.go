// internal/handler/user_auth.go
package handler

import (
	"github.com/labstack/echo/v4"

	"gowa-keeper/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /auth/login
func (a *API) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return ErrorResponse(c, 400, "Username and password are required", "VALIDATION_ERROR", "")
	}

	if err := service.Authenticate(req.Username, req.Password); err != nil {
		return ErrorResponse(c, 401, "Invalid username or password", "INVALID_CREDENTIALS", "")
	}

	token, err := service.GenerateAccessToken(req.Username)
	if err != nil {
		return ErrorResponse(c, 500, "Failed to generate token", "TOKEN_GENERATION_FAILED", err.Error())
	}
	return SuccessResponse(c, 200, "Login successful", map[string]interface{}{
		"accessToken": token,
		"tokenType":   "Bearer",
	})
}
