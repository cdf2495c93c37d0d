package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
	"github.com/holidaibutler/texelmaps-booking/internal/service"
)

// AvailabilityHandler answers capacity queries.  Read only; the
// response is safe to serve from the cache middleware for a few
// seconds.
type AvailabilityHandler struct {
	Reservations *service.ReservationManager
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(reservations *service.ReservationManager) *AvailabilityHandler {
	if reservations == nil {
		panic("nil reservation manager passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Reservations: reservations}
}

// Get handles GET /v1/availability/:poiId?date=YYYY-MM-DD&timeslot=HH:MM-HH:MM.
// It returns the capacity snapshot for one slot, 404 when no slot is
// configured for that POI/date, and 400 for malformed parameters.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	poiID, err := strconv.ParseUint(c.Param("poiId"), 10, 64)
	if err != nil || poiID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid poi id"})
	}
	date := c.QueryParam("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	key := model.SlotKey{POIID: poiID, Date: date, Timeslot: c.QueryParam("timeslot")}

	snap, err := h.Reservations.Availability(c.Request().Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no availability configured"})
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	return c.JSON(http.StatusOK, snap)
}
