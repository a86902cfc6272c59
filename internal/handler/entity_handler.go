package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/logger"
)

// EntityHandler is the HTTP surface of the entity store.
type EntityHandler struct {
	entities *store.EntityStore
}

func NewEntityHandler(entities *store.EntityStore) *EntityHandler {
	return &EntityHandler{entities: entities}
}

// List handles retrieving entities of one logical collection with optional
// filtering and pagination.
func (h *EntityHandler) List(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	filter := store.ListEntitiesFilter{
		EntityType:   c.QueryParam("entity_type"),
		Status:       c.QueryParam("status"),
		NameContains: c.QueryParam("q"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.QueryParam("include_deleted"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.IncludeDeleted = b
		}
	}

	entities, total, err := h.entities.List(c.Request().Context(), ac.OrganizationID, filter)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"entities": entities,
		"total":    total,
	})
}

// Get handles retrieving a single entity by ID
func (h *EntityHandler) Get(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	entity, err := h.entities.Get(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, entity)
}

// Create handles creating a new entity
func (h *EntityHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	var req store.CreateEntityInput
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	entity, err := h.entities.Create(c.Request().Context(), ac.OrganizationID, req)
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Entity created",
		zap.String("entity_id", entity.ID),
		zap.String("entity_type", entity.EntityType))
	return c.JSON(http.StatusCreated, entity)
}

// Update handles patching an existing entity
func (h *EntityHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	var req store.UpdateEntityInput
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	entity, err := h.entities.Update(c.Request().Context(), ac.OrganizationID, c.Param("id"), req)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, entity)
}

// Delete soft-deletes an entity.
func (h *EntityHandler) Delete(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	if err := h.entities.Delete(c.Request().Context(), ac.OrganizationID, c.Param("id")); err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "entity deleted"})
}

// Recover reverses a soft delete.
func (h *EntityHandler) Recover(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermEntitiesWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "entity write permission required"})
	}

	entity, err := h.entities.Recover(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, entity)
}
