package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/pkg/config"
)

var db *gorm.DB

// InitDB opens the postgres connection, runs migrations for the six shared
// tables, and seeds the platform organization row.
func InitDB(cfg *config.Config) error {
	logLevel := logger.Error
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	var err error
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return err
	}

	return nil
}

// Migrate runs the schema migrations and seeds the platform organization.
// Split out so tests can run it against their own connection.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Organization{},
		&model.Entity{},
		&model.DynamicField{},
		&model.Relationship{},
		&model.Transaction{},
		&model.TransactionLine{},
		&model.UserIdentity{},
	); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	platform := model.Organization{
		ID:               model.PlatformOrganizationID,
		OrganizationName: "Platform",
		OrganizationCode: "PLATFORM",
		Status:           "active",
	}
	if err := db.Where("id = ?", model.PlatformOrganizationID).
		FirstOrCreate(&platform).Error; err != nil {
		return fmt.Errorf("failed to seed platform organization: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}
