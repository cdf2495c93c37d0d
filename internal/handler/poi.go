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

// POIDirectory is the read surface the POI browse endpoints need.
type POIDirectory interface {
	GetPOI(ctx context.Context, id uint64) (*model.POI, error)
	ListBookablePOIs(ctx context.Context) ([]model.POI, error)
}

// POIHandler serves the public POI catalogue.  Both endpoints are
// cacheable reads.
type POIHandler struct {
	POIs POIDirectory
}

// NewPOIHandler constructs a POIHandler.
func NewPOIHandler(pois POIDirectory) *POIHandler {
	if pois == nil {
		panic("nil poi directory passed to NewPOIHandler")
	}
	return &POIHandler{POIs: pois}
}

// List handles GET /v1/pois and returns the bookable POIs.
func (h *POIHandler) List(c echo.Context) error {
	pois, err := h.POIs.ListBookablePOIs(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list pois"})
	}
	if pois == nil {
		pois = []model.POI{}
	}
	return c.JSON(http.StatusOK, pois)
}

// Get handles GET /v1/pois/:id.
func (h *POIHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid poi id"})
	}
	poi, err := h.POIs.GetPOI(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPOINotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "poi not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load poi"})
	}
	return c.JSON(http.StatusOK, poi)
}
