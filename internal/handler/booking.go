package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
	"github.com/holidaibutler/texelmaps-booking/internal/service"
)

// maxPartySize caps a single booking.  Larger groups book twice.
const maxPartySize = 20

// BookingHandler exposes the booking lifecycle over HTTP: start a
// booking (hold + checkout), poll it, and feed it payment outcomes.
type BookingHandler struct {
	Orchestrator *service.BookingOrchestrator
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(orchestrator *service.BookingOrchestrator) *BookingHandler {
	if orchestrator == nil {
		panic("nil orchestrator passed to NewBookingHandler")
	}
	return &BookingHandler{Orchestrator: orchestrator}
}

// startBookingRequest is the payload for POST /v1/bookings.
type startBookingRequest struct {
	POIID    uint64 `json:"poi_id"`
	Date     string `json:"date"`     // YYYY-MM-DD
	Timeslot string `json:"timeslot"` // empty for all-day POIs
	Quantity uint32 `json:"quantity"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Start handles POST /v1/bookings.  On success the client gets the
// pending booking, the payment URL to redirect to and the hold
// deadline it must beat.
func (h *BookingHandler) Start(c echo.Context) error {
	var req startBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.POIID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "poi_id is required"})
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	if req.Quantity == 0 || req.Quantity > maxPartySize {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be between 1 and 20"})
	}
	if req.Name == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and email are required"})
	}

	key := model.SlotKey{POIID: req.POIID, Date: req.Date, Timeslot: req.Timeslot}
	guest := model.GuestInfo{Name: req.Name, Email: req.Email, Phone: req.Phone}

	start, err := h.Orchestrator.StartBooking(c.Request().Context(), key, req.Quantity, guest)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPOINotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "poi not found"})
		case errors.Is(err, service.ErrNotBookable):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "poi is not bookable"})
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no availability configured"})
		case errors.Is(err, repository.ErrInsufficientCapacity):
			return c.JSON(http.StatusConflict, echo.Map{"error": "not enough capacity left"})
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start booking"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"booking":     start.Booking,
		"payment_url": start.PaymentURL,
		"expires_at":  start.ExpiresAt,
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing booking id"})
	}
	result, err := h.Orchestrator.GetBooking(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	return c.JSON(http.StatusOK, result)
}

// confirmRequest is the payload for POST /v1/bookings/:id/confirm,
// sent by the payment module's webhook.
type confirmRequest struct {
	PaymentTxID string `json:"payment_tx_id"`
}

// Confirm handles POST /v1/bookings/:id/confirm.  Duplicate webhooks
// are answered with the same confirmed booking.  A payment that
// landed after the hold expired gets 409 and the refund is queued.
func (h *BookingHandler) Confirm(c echo.Context) error {
	id := c.Param("id")
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.PaymentTxID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_tx_id is required"})
	}

	result, err := h.Orchestrator.OnPaymentSucceeded(c.Request().Context(), id, req.PaymentTxID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrAlreadyExpired):
			return c.JSON(http.StatusConflict, echo.Map{"error": "hold expired before payment, refund queued"})
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm booking"})
	}
	return c.JSON(http.StatusOK, result)
}

// cancelRequest is the payload for POST /v1/bookings/:id/cancel.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/bookings/:id/cancel: payment failed or the
// guest abandoned checkout.  Idempotent.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id := c.Param("id")
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by client"
	}

	if err := h.Orchestrator.OnPaymentFailed(c.Request().Context(), id, reason); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}
