package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gowa-keeper/internal/wa"
)

type sendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// POST /instances/:instanceId/send
func (a *API) SendMessage(c echo.Context) error {
	instanceID := c.Param("instanceId")

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if req.To == "" || req.Message == "" {
		return ErrorResponse(c, 400, "Field 'to' and 'message' are required", "VALIDATION_ERROR", "")
	}

	receipt, err := a.Manager.SendText(c.Request().Context(), instanceID, req.To, req.Message)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Message sent successfully", map[string]interface{}{
		"messageId": receipt.MessageID,
		"timestamp": receipt.Timestamp,
		"to":        req.To,
	})
}

// POST /instances/:instanceId/send-media
// Multipart form: file, to, caption (optional).
func (a *API) SendMedia(c echo.Context) error {
	instanceID := c.Param("instanceId")

	to := c.FormValue("to")
	if to == "" {
		return ErrorResponse(c, 400, "Field 'to' is required", "VALIDATION_ERROR", "")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrorResponse(c, 400, "Field 'file' is required", "VALIDATION_ERROR", err.Error())
	}
	file, err := fileHeader.Open()
	if err != nil {
		return ErrorResponse(c, 400, "Failed to open uploaded file", "FILE_READ_FAILED", err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ErrorResponse(c, 400, "Failed to read uploaded file", "FILE_READ_FAILED", err.Error())
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || strings.EqualFold(mimeType, "application/octet-stream") {
		mimeType = http.DetectContentType(data)
	}

	receipt, err := a.Manager.SendMedia(c.Request().Context(), instanceID, to, wa.MediaPayload{
		Data:     data,
		MimeType: mimeType,
		FileName: fileHeader.Filename,
		Caption:  c.FormValue("caption"),
	})
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Media sent successfully", map[string]interface{}{
		"messageId": receipt.MessageID,
		"timestamp": receipt.Timestamp,
		"to":        to,
		"mimeType":  mimeType,
	})
}

// GET /instances/:instanceId/check/:number
func (a *API) CheckNumber(c echo.Context) error {
	instanceID := c.Param("instanceId")
	number := c.Param("number")

	check, err := a.Manager.CheckNumber(c.Request().Context(), instanceID, number)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Phone number checked", map[string]interface{}{
		"query":        check.Query,
		"jid":          check.JID,
		"isRegistered": check.IsRegistered,
	})
}
