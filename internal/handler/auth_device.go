package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
	"github.com/holidaibutler/texelmaps-booking/internal/utils"
)

// DeviceDirectory looks up validator devices for login.  The SQL
// store provides it; the in-memory store does not carry device
// provisioning, so the handler tolerates a nil directory.
type DeviceDirectory interface {
	GetActive(ctx context.Context, id string) (*model.ValidatorDevice, error)
	TouchLastSeen(ctx context.Context, id string) error
}

// DeviceAuthHandler exchanges a device id and provisioning key for a
// short-lived validator JWT.
type DeviceAuthHandler struct {
	Devices   DeviceDirectory
	JWTSecret string
	TokenTTL  int // minutes
}

// NewDeviceAuthHandler constructs a DeviceAuthHandler.  Devices may
// be nil when the deployment has no device directory; login then
// answers 503.
func NewDeviceAuthHandler(devices DeviceDirectory, jwtSecret string, tokenTTLMin int) *DeviceAuthHandler {
	return &DeviceAuthHandler{Devices: devices, JWTSecret: jwtSecret, TokenTTL: tokenTTLMin}
}

// deviceLoginRequest is the payload for POST /v1/auth/device.
type deviceLoginRequest struct {
	DeviceID string `json:"device_id"`
	Key      string `json:"key"`
}

// Login handles POST /v1/auth/device.  Unknown device, inactive
// device and wrong key all answer the same 401 so probing reveals
// nothing.
func (h *DeviceAuthHandler) Login(c echo.Context) error {
	if h.Devices == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "device auth not available"})
	}

	var req deviceLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.DeviceID == "" || req.Key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "device_id and key are required"})
	}

	dev, err := h.Devices.GetActive(c.Request().Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if !utils.VerifyProvisioningKey(dev.KeyHash, req.Key) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewDeviceToken(h.JWTSecret, dev.ID, dev.POIID, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	// Best effort; a failed touch must not block the login.
	_ = h.Devices.TouchLastSeen(c.Request().Context(), dev.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"token":      tok.Token,
		"expires_at": tok.Exp,
		"poi_id":     dev.POIID,
	})
}
