package handler

import (
	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"gowa-keeper/config"
	"gowa-keeper/internal/model"
	"gowa-keeper/internal/service"
	"gowa-keeper/internal/ws"
)

// API bundles the dependencies every handler needs.
type API struct {
	Manager *service.Manager
	Hub     *ws.Hub
	Cfg     *config.Config
}

type createInstanceRequest struct {
	InstanceID string `json:"instanceId"`
}

// POST /instances
func (a *API) CreateInstance(c echo.Context) error {
	var req createInstanceRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	snap, err := a.Manager.Create(req.InstanceID)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 201, "Instance created", map[string]interface{}{
		"instanceId": snap.ID,
		"status":     snap.Status,
	})
}

// POST /instances/:instanceId/initialize
func (a *API) InitializeInstance(c echo.Context) error {
	snap, err := a.Manager.Initialize(c.Param("instanceId"))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Initialization started", map[string]interface{}{
		"instanceId": snap.ID,
		"status":     snap.Status,
	})
}

// DELETE /instances/:instanceId
func (a *API) DestroyInstance(c echo.Context) error {
	instanceID := c.Param("instanceId")
	if err := a.Manager.Destroy(c.Request().Context(), instanceID); err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Instance destroyed", map[string]interface{}{
		"instanceId": instanceID,
	})
}

// GET /instances/:instanceId/status
func (a *API) GetInstanceStatus(c echo.Context) error {
	snap, err := a.Manager.Registry().Snapshot(c.Param("instanceId"))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Instance status retrieved", snap)
}

// GET /instances/status
func (a *API) GetInstancesStatus(c echo.Context) error {
	snaps := a.Manager.Registry().Snapshots()
	return SuccessResponse(c, 200, "Instances status retrieved", map[string]interface{}{
		"count":     len(snaps),
		"instances": snaps,
	})
}

// GET /instances/:instanceId/qr
func (a *API) GetQR(c echo.Context) error {
	snap, err := a.Manager.Registry().Snapshot(c.Param("instanceId"))
	if err != nil {
		return serviceError(c, err)
	}
	if snap.QRCode == "" {
		if snap.Status == model.StatusReady || snap.Status == model.StatusAuthenticated {
			return ErrorResponse(c, 400, "Instance is already authenticated", "ALREADY_AUTHENTICATED", "")
		}
		return ErrorResponse(c, 404, "No QR code available yet", "QR_NOT_READY", "Initialize the instance and retry shortly")
	}
	return SuccessResponse(c, 200, "QR code retrieved", map[string]interface{}{
		"instanceId": snap.ID,
		"qr":         snap.QRCode,
		"status":     snap.Status,
	})
}

// GET /instances/:instanceId/qr.png
func (a *API) GetQRImage(c echo.Context) error {
	snap, err := a.Manager.Registry().Snapshot(c.Param("instanceId"))
	if err != nil {
		return serviceError(c, err)
	}
	if snap.QRCode == "" {
		return ErrorResponse(c, 404, "No QR code available yet", "QR_NOT_READY", "Initialize the instance and retry shortly")
	}

	png, err := qrcode.Encode(snap.QRCode, qrcode.Medium, 256)
	if err != nil {
		return ErrorResponse(c, 500, "Failed to render QR code", "QR_RENDER_FAILED", err.Error())
	}
	return c.Blob(200, "image/png", png)
}

// POST /instances/:instanceId/reconnect
func (a *API) ReconnectInstance(c echo.Context) error {
	instanceID := c.Param("instanceId")
	if err := a.Manager.AttemptReconnect(instanceID); err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 202, "Reconnection attempt started", map[string]interface{}{
		"instanceId": instanceID,
	})
}
