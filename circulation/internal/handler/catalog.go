package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.catalog.CreateBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	resp, err := h.catalog.GetBook(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListBooks(c echo.Context) error {
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.catalog.ListBooks(c.Request().Context(), page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateMember(c echo.Context) error {
	var req model.CreateMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.catalog.CreateMember(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	resp, err := h.catalog.GetMember(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
