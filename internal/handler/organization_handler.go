package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/logger"
)

// OrganizationHandler provisions tenants and manages membership.
type OrganizationHandler struct {
	orgs *store.OrganizationStore
}

func NewOrganizationHandler(orgs *store.OrganizationStore) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

// Create provisions a new organization owned by the caller. The caller only
// needs an identity token; this is how an actor gets its first tenant.
func (h *OrganizationHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	var req struct {
		OrganizationName string                 `json:"organization_name"`
		OrganizationCode string                 `json:"organization_code"`
		Settings         map[string]interface{} `json:"settings,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	org, err := h.orgs.Create(c.Request().Context(), store.CreateOrganizationInput{
		OrganizationName: req.OrganizationName,
		OrganizationCode: req.OrganizationCode,
		Settings:         datatypes.JSONMap(req.Settings),
		OwnerEntityID:    ac.UserEntityID,
	})
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Organization created",
		zap.String("organization_id", org.ID),
		zap.String("owner_entity_id", ac.UserEntityID))
	return c.JSON(http.StatusCreated, org)
}

// Get returns the caller's current organization record.
func (h *OrganizationHandler) Get(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	org, err := h.orgs.Get(c.Request().Context(), ac.OrganizationID)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, org)
}

// AddMember grants another user membership in the caller's organization.
// Requires organization admin permission.
func (h *OrganizationHandler) AddMember(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermOrganizationAdmin) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "organization admin permission required"})
	}

	var req struct {
		UserEntityID string `json:"user_entity_id"`
		Role         string `json:"role,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	edge, err := h.orgs.AddMember(c.Request().Context(), ac.OrganizationID, req.UserEntityID, req.Role)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusCreated, edge)
}
