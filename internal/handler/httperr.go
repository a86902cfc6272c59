package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bizcore/universal/internal/apperr"
)

// respondError maps the error taxonomy to distinct response codes. The
// classified kinds never collapse into a generic 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error("unclassified error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	body := echo.Map{"error": ae.Message, "kind": ae.Kind.String()}
	if ae.Field != "" {
		body["field"] = ae.Field
	}

	switch ae.Kind {
	case apperr.KindValidation:
		return c.JSON(http.StatusBadRequest, body)
	case apperr.KindTenantIsolation:
		return c.JSON(http.StatusForbidden, body)
	case apperr.KindNotFound:
		return c.JSON(http.StatusNotFound, body)
	case apperr.KindConflict:
		return c.JSON(http.StatusConflict, body)
	case apperr.KindBackingStore:
		log.Error("backing store failure", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "backing store unavailable", "kind": ae.Kind.String()})
	default:
		log.Error("unknown error kind", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
