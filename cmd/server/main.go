package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/handler"
	mid "github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/config"
	"github.com/bizcore/universal/pkg/database"
	"github.com/bizcore/universal/pkg/jwtutil"
	"github.com/bizcore/universal/pkg/logger"
	"github.com/bizcore/universal/pkg/metrics"
)

func main() {
	// Load .env file; environments with real env vars just skip this.
	_ = godotenv.Load()

	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting universal-data-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	jwtUtil := jwtutil.NewJWTUtil(&appConfig.JWT)

	httpMetrics := metrics.NewHTTPMetrics(appConfig.Metrics.ServiceName)

	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	db := database.GetDB()
	log.Info("Database connection established")

	// Stores share one connection; the ledger doubles as the status-change
	// audit recorder for the entity store.
	ledger := store.NewTransactionStore(db, log)
	entities := store.NewEntityStore(db, log).WithStatusRecorder(ledger)
	fields := store.NewDynamicDataStore(db, log)
	rels := store.NewRelationshipStore(db, log)
	orgs := store.NewOrganizationStore(db, log)
	resolver := authz.NewResolver(db, log)

	authHandler := handler.NewAuthHandler(db, entities, resolver, jwtUtil)
	orgHandler := handler.NewOrganizationHandler(orgs)
	entityHandler := handler.NewEntityHandler(entities)
	fieldHandler := handler.NewDynamicDataHandler(fields)
	relHandler := handler.NewRelationshipHandler(rels)
	txHandler := handler.NewTransactionHandler(ledger)

	e := echo.New()

	e.Use(echomw.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(httpMetrics.Middleware())

	e.GET("/metrics", echo.WrapHandler(metrics.GetPrometheusHandler()))
	e.GET("/health", handler.Health)

	// Auth: registration and login are public; membership listing and
	// organization provisioning need an identity token only.
	e.POST("/api/auth/register", authHandler.Register)
	e.POST("/api/auth/login", authHandler.Login)

	identityAPI := e.Group("/api", mid.IdentityMiddleware(jwtUtil))
	identityAPI.GET("/auth/organizations", authHandler.Memberships)
	identityAPI.POST("/organizations", orgHandler.Create)

	// Everything below requires a resolved organization context.
	orgAPI := e.Group("/api", mid.OrgContextMiddleware(jwtUtil))

	orgAPI.GET("/organization", orgHandler.Get)
	orgAPI.POST("/organization/members", orgHandler.AddMember)

	orgAPI.GET("/entities", entityHandler.List)
	orgAPI.GET("/entities/:id", entityHandler.Get)
	orgAPI.POST("/entities", entityHandler.Create)
	orgAPI.PUT("/entities/:id", entityHandler.Update)
	orgAPI.DELETE("/entities/:id", entityHandler.Delete)
	orgAPI.POST("/entities/:id/recover", entityHandler.Recover)

	orgAPI.GET("/entities/:id/fields", fieldHandler.GetFields)
	orgAPI.PUT("/entities/:id/fields/:name", fieldHandler.UpsertField)
	orgAPI.POST("/entities/:id/fields", fieldHandler.BatchUpsert)
	orgAPI.DELETE("/entities/:id/fields/:name", fieldHandler.DeleteField)

	orgAPI.POST("/relationships", relHandler.Create)
	orgAPI.GET("/entities/:id/relationships", relHandler.FindByEndpoint)
	orgAPI.POST("/relationships/:id/deactivate", relHandler.Deactivate)
	orgAPI.POST("/relationships/:id/reactivate", relHandler.Reactivate)

	orgAPI.POST("/transactions", txHandler.Create)
	orgAPI.GET("/transactions/:id", txHandler.Get)
	orgAPI.POST("/transactions/:id/lines", txHandler.AppendLines)
	orgAPI.PATCH("/transactions/:id/status", txHandler.UpdateStatus)

	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
