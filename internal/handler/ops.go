package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/repository"
)

// OpsDirectory is the back-office view of bookings: reconciliation
// listings and support-desk lookups.
type OpsDirectory interface {
	ListReversalRequired(ctx context.Context, limit int) ([]model.Booking, error)
	GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error)
}

// OpsHandler serves back-office endpoints.  All of them sit behind
// the OPERATOR role.
type OpsHandler struct {
	Bookings OpsDirectory
}

// NewOpsHandler constructs an OpsHandler.
func NewOpsHandler(bookings OpsDirectory) *OpsHandler {
	if bookings == nil {
		panic("nil ops directory passed to NewOpsHandler")
	}
	return &OpsHandler{Bookings: bookings}
}

// Reversals handles GET /v1/ops/reversals?limit=N.  These bookings
// took money after their hold expired; each needs a refund pushed
// through the payment module and the flag cleared by the back office.
func (h *OpsHandler) Reversals(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 1000"})
		}
		limit = n
	}
	bookings, err := h.Bookings.ListReversalRequired(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list reversals"})
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reversals": bookings, "count": len(bookings)})
}

// BookingByReference handles GET /v1/ops/bookings/:reference, the
// support-desk lookup by the code printed on the confirmation.
func (h *OpsHandler) BookingByReference(c echo.Context) error {
	ref := c.Param("reference")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing reference"})
	}
	b, err := h.Bookings.GetBookingByReference(c.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	return c.JSON(http.StatusOK, b)
}
