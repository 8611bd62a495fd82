package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-ticketing/internal/repository"
)

// TripHandler serves the public trip browse surface. Both routes are
// read-only and sit behind the response-cache middleware; everything
// that mutates state lives on the ticket and payment handlers.
type TripHandler struct {
	TripRepo *repository.TripRepo
}

// NewTripHandler constructs a TripHandler.
func NewTripHandler(tripRepo *repository.TripRepo) *TripHandler {
	if tripRepo == nil {
		panic("nil repository passed to NewTripHandler")
	}
	return &TripHandler{TripRepo: tripRepo}
}

// GetTrip handles GET /v1/trips/:id.
func (h *TripHandler) GetTrip(c echo.Context) error {
	tripID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	trip, err := h.TripRepo.GetByID(c.Request().Context(), tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, trip)
}

// SearchTrips handles GET /v1/trips?from=&to=&date=. All three filters
// are optional; an empty query returns the next departures.
func (h *TripHandler) SearchTrips(c echo.Context) error {
	trips, err := h.TripRepo.Search(c.Request().Context(), c.QueryParam("from"), c.QueryParam("to"), c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"trips": trips})
}
