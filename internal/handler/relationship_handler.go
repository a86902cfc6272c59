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

// RelationshipHandler is the HTTP surface of the relationship graph.
type RelationshipHandler struct {
	rels *store.RelationshipStore
}

func NewRelationshipHandler(rels *store.RelationshipStore) *RelationshipHandler {
	return &RelationshipHandler{rels: rels}
}

// Create adds a directed typed edge between two entities.
func (h *RelationshipHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermRelationshipsWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "relationship write permission required"})
	}

	var req store.CreateRelationshipInput
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	rel, err := h.rels.Create(c.Request().Context(), ac.OrganizationID, req)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusCreated, rel)
}

// FindByEndpoint returns edges touching one entity. direction is required
// ("outgoing" or "incoming"); type is optional; inactive edges only appear
// with include_inactive=true.
func (h *RelationshipHandler) FindByEndpoint(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	includeInactive := false
	if v := c.QueryParam("include_inactive"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			includeInactive = b
		}
	}

	rels, err := h.rels.FindByEndpoint(
		c.Request().Context(),
		ac.OrganizationID,
		c.Param("id"),
		store.Direction(c.QueryParam("direction")),
		c.QueryParam("type"),
		includeInactive,
	)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"relationships": rels})
}

// Deactivate flips an edge inactive, preserving it for audit views.
func (h *RelationshipHandler) Deactivate(c echo.Context) error {
	return h.setActive(c, false)
}

// Reactivate re-enables a previously deactivated edge.
func (h *RelationshipHandler) Reactivate(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *RelationshipHandler) setActive(c echo.Context, active bool) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermRelationshipsWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "relationship write permission required"})
	}

	var err error
	if active {
		err = h.rels.Reactivate(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	} else {
		err = h.rels.Deactivate(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	}
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "relationship updated"})
}
