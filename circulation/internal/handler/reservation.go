package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/labstack/echo/v4"
)

// CreateReservation rejects a second active reservation of the same book by the same member.
func (h *Handler) CreateReservation(c echo.Context) error {
	var req model.CreateReservationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	exists, err := h.reservations.HasActiveReservation(ctx, req.BookID, req.MemberID)
	if err != nil {
		return h.httpError(c, err)
	}
	if exists {
		return echo.NewHTTPError(http.StatusBadRequest, errs.MsgDuplicateReservation)
	}
	resp, err := h.reservations.CreateReservation(ctx, req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	var req model.CancelReservationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.reservations.CancelReservation(c.Request().Context(), req); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) FulfillReservation(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.reservations.FulfillReservation(c.Request().Context(), id); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListBookQueue(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	resp, err := h.reservations.ListBookQueue(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExpireReservations(c echo.Context) error {
	n, err := h.reservations.ExpireReservations(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, model.ExpireResponse{Expired: n})
}
