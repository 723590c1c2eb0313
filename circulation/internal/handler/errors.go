package handler

import (
	"net/http"

	"github.com/Astemirdum/library-circulation/circulation/internal/errs"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// httpError maps error kinds to status codes. Internal errors never leak their text.
func (h *Handler) httpError(c echo.Context, err error) error {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.KindRuleViolation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errs.KindUnauthorized:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	h.log.Error("internal error",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
