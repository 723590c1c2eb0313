package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/labstack/echo/v4"
)

// BorrowBook godoc
// @Summary      Borrow a book
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request body model.BorrowRequest true "borrow request"
// @Success      201 {object} model.TransactionView
// @Failure      400,401,404 {object} errs.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transactions/borrow [post]
func (h *Handler) BorrowBook(c echo.Context) error {
	var req model.BorrowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.transactions.BorrowBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// ReturnBook godoc
// @Summary      Return a borrowed book
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request body model.ReturnRequest true "return request"
// @Success      200 {object} model.TransactionView
// @Failure      400,401,404 {object} errs.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transactions/return [post]
func (h *Handler) ReturnBook(c echo.Context) error {
	var req model.ReturnRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.transactions.ReturnBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RenewBook godoc
// @Summary      Extend the due date of an active loan
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request body model.RenewRequest true "renew request"
// @Success      200 {object} model.TransactionView
// @Failure      400,401,404 {object} errs.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transactions/renew [post]
func (h *Handler) RenewBook(c echo.Context) error {
	var req model.RenewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.transactions.RenewBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetTransaction(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	resp, err := h.transactions.GetTransaction(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListMemberTransactions(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.transactions.ListMemberTransactions(c.Request().Context(), id, page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListBookTransactions(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.transactions.ListBookTransactions(c.Request().Context(), id, page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListOverdue(c echo.Context) error {
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.transactions.ListOverdue(c.Request().Context(), page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListActive(c echo.Context) error {
	var page model.PageRequest
	if err := bind(c, &page); err != nil {
		return err
	}
	resp, err := h.transactions.ListActive(c.Request().Context(), page)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
