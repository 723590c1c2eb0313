package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) GetStats(c echo.Context) error {
	resp, err := h.stats.GetStats(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
