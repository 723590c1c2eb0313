package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) PayFine(c echo.Context) error {
	var req model.PayFineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.fines.PayFine(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) WaiveFine(c echo.Context) error {
	var req model.WaiveFineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.fines.WaiveFine(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) IssueFine(c echo.Context) error {
	var req model.IssueFineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.fines.IssueFine(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetFine(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	resp, err := h.fines.GetFine(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListMemberFines(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.fines.ListMemberFines(c.Request().Context(), id, page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
