package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/jwtutil"
	"github.com/bizcore/universal/pkg/logger"
	"github.com/bizcore/universal/pkg/metrics"
)

const userProfileSmartCode = "PLATFORM.IDENTITY.USER.PROFILE.V1"

// AuthHandler owns registration, login, and membership resolution.
type AuthHandler struct {
	db       *gorm.DB
	entities *store.EntityStore
	resolver *authz.Resolver
	jwt      *jwtutil.JWTUtil
}

func NewAuthHandler(db *gorm.DB, entities *store.EntityStore, resolver *authz.Resolver, jwt *jwtutil.JWTUtil) *AuthHandler {
	return &AuthHandler{db: db, entities: entities, resolver: resolver, jwt: jwt}
}

// Register creates an actor identity: a user entity in the platform
// organization plus a credential row pointing at it.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	if req.FullName == "" {
		req.FullName = req.Email
	}

	ctx := c.Request().Context()

	defer metrics.TrackDBOperation("query")(time.Now())
	var existing model.UserIdentity
	if err := h.db.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	entity, err := h.entities.Create(ctx, model.PlatformOrganizationID, store.CreateEntityInput{
		EntityType: model.EntityTypeUser,
		EntityName: req.FullName,
		EntityCode: req.Email,
		SmartCode:  userProfileSmartCode,
	})
	if err != nil {
		return respondError(c, log, err)
	}

	identity := model.UserIdentity{
		EntityID:     entity.ID,
		Email:        req.Email,
		PasswordHash: string(hashed),
	}
	defer metrics.TrackDBOperation("insert")(time.Now())
	if err := h.db.WithContext(ctx).Create(&identity).Error; err != nil {
		log.Error("Failed to create user identity", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered",
		zap.String("email", req.Email),
		zap.String("user_entity_id", entity.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
		"user": echo.Map{
			"id":        identity.ID,
			"email":     identity.Email,
			"entity_id": entity.ID,
		},
	})
}

// Login verifies credentials, resolves the actor's memberships, and issues
// a token bound to one organization. An explicit organization_id in the
// request is validated against the resolved memberships; otherwise the
// default organization is used. Actors with no memberships yet get an
// identity-only token so they can provision their first organization.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		OrganizationID string `json:"organization_id,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()

	defer metrics.TrackDBOperation("query")(time.Now())
	var identity model.UserIdentity
	if err := h.db.WithContext(ctx).Where("email = ?", req.Email).First(&identity).Error; err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	profile, err := h.resolver.Resolve(ctx, identity.EntityID)
	if err != nil {
		if errors.Is(err, authz.ErrNoMembership) {
			metrics.MembershipResolutionCounter.WithLabelValues("denied").Inc()
			token, terr := h.jwt.GenerateToken(identity.Email, identity.EntityID, "", "", "", nil)
			if terr != nil {
				log.Error("Failed to generate token", zap.Error(terr))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
			}
			metrics.ActiveTokenGauge.Inc()
			log.Info("User logged in without organization membership", zap.String("email", identity.Email))
			return c.JSON(http.StatusOK, echo.Map{
				"token":         token,
				"organizations": []authz.Membership{},
				"user":          echo.Map{"email": identity.Email, "entity_id": identity.EntityID},
			})
		}
		return respondError(c, log, err)
	}
	metrics.MembershipResolutionCounter.WithLabelValues("resolved").Inc()

	authCtx, err := h.resolver.ContextFor(profile, req.OrganizationID)
	if err != nil {
		return respondError(c, log, err)
	}

	token, err := h.jwt.GenerateToken(
		identity.Email,
		identity.EntityID,
		authCtx.OrganizationID,
		authCtx.OrganizationName,
		authCtx.Role,
		authCtx.Permissions,
	)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	metrics.ActiveTokenGauge.Inc()

	log.Info("User logged in with organization context",
		zap.String("email", identity.Email),
		zap.String("organization_id", authCtx.OrganizationID),
		zap.String("role", authCtx.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token":         token,
		"organizations": profile.Organizations,
		"organization": echo.Map{
			"id":   authCtx.OrganizationID,
			"name": authCtx.OrganizationName,
			"role": authCtx.Role,
		},
		"user": echo.Map{"email": identity.Email, "entity_id": identity.EntityID},
	})
}

// Memberships returns the caller's resolved organizations. One round trip
// from the client's point of view, matching the resolver contract.
func (h *AuthHandler) Memberships(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	profile, err := h.resolver.Resolve(c.Request().Context(), ac.UserEntityID)
	if err != nil {
		if errors.Is(err, authz.ErrNoMembership) {
			return c.JSON(http.StatusOK, echo.Map{
				"organizations":           []authz.Membership{},
				"default_organization_id": "",
			})
		}
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"organizations":           profile.Organizations,
		"default_organization_id": profile.DefaultOrganizationID,
	})
}
