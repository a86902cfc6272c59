package store

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/pkg/database"
)

// newTestDB opens an in-memory sqlite database with the real migrations.
// One connection only: a :memory: database is per-connection, and the
// single connection also serializes concurrent test writers the way the
// pooled postgres connection does.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

type testStores struct {
	db       *gorm.DB
	entities *EntityStore
	fields   *DynamicDataStore
	rels     *RelationshipStore
	ledger   *TransactionStore
	orgs     *OrganizationStore
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	return &testStores{
		db:       db,
		entities: NewEntityStore(db, log),
		fields:   NewDynamicDataStore(db, log),
		rels:     NewRelationshipStore(db, log),
		ledger:   NewTransactionStore(db, log),
		orgs:     NewOrganizationStore(db, log),
	}
}

func seedOrg(t *testing.T, db *gorm.DB, name, code string) *model.Organization {
	t.Helper()
	org := &model.Organization{
		OrganizationName: name,
		OrganizationCode: code,
		Status:           "active",
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

func seedPlatformUser(t *testing.T, db *gorm.DB, email string) *model.Entity {
	t.Helper()
	user := &model.Entity{
		OrganizationID: model.PlatformOrganizationID,
		EntityType:     model.EntityTypeUser,
		EntityName:     email,
		EntityCode:     email,
		Status:         model.EntityStatusActive,
		SmartCode:      "PLATFORM.IDENTITY.USER.PROFILE.V1",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
