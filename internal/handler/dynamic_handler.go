package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/logger"
)

// DynamicDataHandler is the HTTP surface of the dynamic data engine.
type DynamicDataHandler struct {
	fields *store.DynamicDataStore
}

func NewDynamicDataHandler(fields *store.DynamicDataStore) *DynamicDataHandler {
	return &DynamicDataHandler{fields: fields}
}

// GetFields returns all attributes of one entity.
func (h *DynamicDataHandler) GetFields(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	fields, err := h.fields.GetFields(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"fields": fields})
}

// UpsertField writes one attribute; repeated writes to the same field name
// update in place.
func (h *DynamicDataHandler) UpsertField(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	var req store.FieldInput
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if name := c.Param("name"); name != "" {
		req.FieldName = name
	}

	field, err := h.fields.UpsertField(c.Request().Context(), ac.OrganizationID, c.Param("id"), req)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, field)
}

// BatchUpsert writes several attributes best effort and reports a per-field
// outcome list.
func (h *DynamicDataHandler) BatchUpsert(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	var req struct {
		Fields []store.FieldInput `json:"fields"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	results, err := h.fields.BatchUpsert(c.Request().Context(), ac.OrganizationID, c.Param("id"), req.Fields)
	if err != nil {
		return respondError(c, log, err)
	}

	type itemResult struct {
		FieldName string      `json:"field_name"`
		OK        bool        `json:"ok"`
		Field     interface{} `json:"field,omitempty"`
		Error     string      `json:"error,omitempty"`
	}
	out := make([]itemResult, 0, len(results))
	for _, r := range results {
		item := itemResult{FieldName: r.FieldName, OK: r.Err == nil}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else {
			item.Field = r.Field
		}
		out = append(out, item)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": out})
}

// DeleteField removes one attribute row.
func (h *DynamicDataHandler) DeleteField(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	err := h.fields.DeleteField(c.Request().Context(), ac.OrganizationID, c.Param("id"), c.Param("name"))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "field deleted"})
}
