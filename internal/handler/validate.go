package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/service"
)

// ValidateHandler is the gate-side scan endpoint.  It sits behind the
// JWT middleware; the device id and pinned POI come from the token,
// never from the request body.
type ValidateHandler struct {
	Issuer   *service.TicketIssuer
	Bookings service.BookingStore
}

// NewValidateHandler constructs a ValidateHandler.
func NewValidateHandler(issuer *service.TicketIssuer, bookings service.BookingStore) *ValidateHandler {
	if issuer == nil || bookings == nil {
		panic("nil dependency passed to NewValidateHandler")
	}
	return &ValidateHandler{Issuer: issuer, Bookings: bookings}
}

// validateRequest is the payload for POST /v1/validate.
type validateRequest struct {
	Code  string `json:"code"`
	POIID uint64 `json:"poi_id"`
}

// Validate handles POST /v1/validate.  Rejection reasons come back as
// 200 with valid=false; the scanner app shows them to the gate staff.
// Only transport and auth problems are HTTP errors.
func (h *ValidateHandler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	deviceID, _ := c.Get("device_id").(string)
	if deviceID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing device identity"})
	}

	// A device pinned to a POI can only admit at that POI.  A pin of
	// zero means roaming staff hardware; the POI must then be in the
	// request.
	poiID := req.POIID
	if pinned, _ := c.Get("poi").(uint64); pinned != 0 {
		poiID = pinned
	}
	if poiID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "poi_id is required"})
	}

	result, err := h.Issuer.Validate(c.Request().Context(), h.Bookings, req.Code, poiID, deviceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation failed"})
	}
	return c.JSON(http.StatusOK, result)
}
