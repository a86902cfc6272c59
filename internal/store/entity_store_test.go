package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
)

const customerSmartCode = "SALON.CRM.CUSTOMER.PROFILE.V1"

func TestEntityCreateAndGet(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme Salon", "ACME")
	ctx := context.Background()

	entity, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer",
		EntityName: "Jane Doe",
		EntityCode: "CUST-001",
		SmartCode:  customerSmartCode,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entity.ID)
	assert.Equal(t, org.ID, entity.OrganizationID)
	assert.Equal(t, model.EntityStatusActive, entity.Status)

	got, err := ts.entities.Get(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.EntityName)
}

func TestEntityCreateRejectsBadSmartCode(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	_, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer",
		EntityName: "Jane",
		SmartCode:  "not a smart code",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// the failed create wrote nothing
	var count int64
	require.NoError(t, ts.db.Model(&model.Entity{}).
		Where("organization_id = ?", org.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEntityCreateRequiresFields(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	_, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityName: "Jane", SmartCode: customerSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer", SmartCode: customerSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestEntityTenantIsolation(t *testing.T) {
	ts := newTestStores(t)
	orgA := seedOrg(t, ts.db, "Org A", "ORG-A")
	orgB := seedOrg(t, ts.db, "Org B", "ORG-B")
	ctx := context.Background()

	acme, err := ts.entities.Create(ctx, orgA.ID, CreateEntityInput{
		EntityType: "customer",
		EntityName: "Acme",
		SmartCode:  customerSmartCode,
	})
	require.NoError(t, err)

	// a read from org B for an entity that exists in org A is
	// indistinguishable from a read for a truly nonexistent id
	_, errCross := ts.entities.Get(ctx, orgB.ID, acme.ID)
	_, errMissing := ts.entities.Get(ctx, orgB.ID, "00000000-0000-0000-0000-00000000dead")
	assert.True(t, errors.Is(errCross, apperr.ErrNotFound))
	assert.True(t, errors.Is(errMissing, apperr.ErrNotFound))
	assert.Equal(t, apperr.KindOf(errCross), apperr.KindOf(errMissing))

	// no organization context at all is a hard isolation failure
	_, err = ts.entities.Get(ctx, "", acme.ID)
	assert.True(t, errors.Is(err, apperr.ErrTenantIsolation))

	// writes naming a different organization than the context are rejected
	_, err = ts.entities.Create(ctx, orgA.ID, CreateEntityInput{
		OrganizationID: orgB.ID,
		EntityType:     "customer",
		EntityName:     "Sneaky",
		SmartCode:      customerSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrTenantIsolation))
}

func TestEntityCodeUniquePerTypeAndOrg(t *testing.T) {
	ts := newTestStores(t)
	orgA := seedOrg(t, ts.db, "Org A", "ORG-A")
	orgB := seedOrg(t, ts.db, "Org B", "ORG-B")
	ctx := context.Background()

	_, err := ts.entities.Create(ctx, orgA.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "One", EntityCode: "C-1", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)

	// same code, same type, same org: conflict
	_, err = ts.entities.Create(ctx, orgA.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "Two", EntityCode: "C-1", SmartCode: customerSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	// same code, different type: fine
	_, err = ts.entities.Create(ctx, orgA.ID, CreateEntityInput{
		EntityType: "product", EntityName: "Widget", EntityCode: "C-1", SmartCode: customerSmartCode,
	})
	assert.NoError(t, err)

	// same code, same type, different org: fine (codes are not global)
	_, err = ts.entities.Create(ctx, orgB.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "Other", EntityCode: "C-1", SmartCode: customerSmartCode,
	})
	assert.NoError(t, err)
}

func TestEntitySoftDeleteAndRecover(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	entity, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "Jane", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)

	require.NoError(t, ts.entities.Delete(ctx, org.ID, entity.ID))

	_, err = ts.entities.Get(ctx, org.ID, entity.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// deleting twice is a not-found, not a double delete
	err = ts.entities.Delete(ctx, org.ID, entity.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// the row is still there, visible when deleted rows are requested
	list, total, err := ts.entities.List(ctx, org.ID, ListEntitiesFilter{
		EntityType: "customer", IncludeDeleted: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.EntityStatusDeleted, list[0].Status)

	recovered, err := ts.entities.Recover(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityStatusActive, recovered.Status)

	got, err := ts.entities.Get(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.EntityName)

	// recovering an entity that is not deleted is a not-found
	_, err = ts.entities.Recover(ctx, org.ID, entity.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestEntityListFiltersAndPagination(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	names := []string{"Alpha Corp", "Beta LLC", "Gamma Inc"}
	for _, n := range names {
		_, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
			EntityType: "customer", EntityName: n, SmartCode: customerSmartCode,
		})
		require.NoError(t, err)
	}
	_, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "product", EntityName: "Widget", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)

	list, total, err := ts.entities.List(ctx, org.ID, ListEntitiesFilter{EntityType: "customer"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 3)

	list, total, err = ts.entities.List(ctx, org.ID, ListEntitiesFilter{
		EntityType: "customer", Limit: 2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 2)

	list, _, err = ts.entities.List(ctx, org.ID, ListEntitiesFilter{
		EntityType: "customer", NameContains: "beta",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Beta LLC", list[0].EntityName)
}

func TestEntityUpdatePatchesAndRevalidates(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	entity, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "Jane", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)

	bad := "still not a smart code"
	_, err = ts.entities.Update(ctx, org.ID, entity.ID, UpdateEntityInput{SmartCode: &bad})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// the failed update left the entity untouched
	got, err := ts.entities.Get(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, customerSmartCode, got.SmartCode)

	newName := "Jane Smith"
	newStatus := model.EntityStatusInactive
	updated, err := ts.entities.Update(ctx, org.ID, entity.ID, UpdateEntityInput{
		EntityName: &newName,
		Status:     &newStatus,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", updated.EntityName)
	assert.Equal(t, model.EntityStatusInactive, updated.Status)
}

func TestEntityStatusChangeEmitsAuditTransaction(t *testing.T) {
	ts := newTestStores(t)
	ts.entities.WithStatusRecorder(ts.ledger)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	ctx := context.Background()

	entity, err := ts.entities.Create(ctx, org.ID, CreateEntityInput{
		EntityType: "customer", EntityName: "Jane", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)

	require.NoError(t, ts.entities.Delete(ctx, org.ID, entity.ID))

	var audits []model.Transaction
	require.NoError(t, ts.db.
		Where("organization_id = ?", org.ID).
		Where("transaction_type = ?", model.TxTypeStatusChange).
		Find(&audits).Error)
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].SourceEntityID)
	assert.Equal(t, entity.ID, *audits[0].SourceEntityID)
	assert.Equal(t, model.EntityStatusDeleted, audits[0].Metadata["new_status"])
}
