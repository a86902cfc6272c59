package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
)

const priceSmartCode = "SALON.CRM.CUSTOMER.FIELD.PRICE.V1"

func seedCustomer(t *testing.T, ts *testStores, orgID string) *model.Entity {
	t.Helper()
	entity, err := ts.entities.Create(context.Background(), orgID, CreateEntityInput{
		EntityType: "customer", EntityName: "Jane", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)
	return entity
}

func TestUpsertFieldIdempotent(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	in := FieldInput{FieldName: "price", FieldType: model.FieldTypeNumber, Value: 10.0, SmartCode: priceSmartCode}
	_, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, in)
	require.NoError(t, err)
	field, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, in)
	require.NoError(t, err)

	require.NotNil(t, field.FieldValueNumber)
	assert.Equal(t, 10.0, *field.FieldValueNumber)

	var count int64
	require.NoError(t, ts.db.Model(&model.DynamicField{}).
		Where("organization_id = ? AND entity_id = ? AND field_name = ?", org.ID, entity.ID, "price").
		Count(&count).Error)
	assert.EqualValues(t, 1, count, "upsert must never create duplicate rows")

	// last write wins
	in.Value = 12.5
	field, err = ts.fields.UpsertField(ctx, org.ID, entity.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 12.5, *field.FieldValueNumber)
}

func TestUpsertFieldSingleSlot(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	field, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, FieldInput{
		FieldName: "vip", FieldType: model.FieldTypeBoolean, Value: true, SmartCode: priceSmartCode,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, field.PopulatedSlots())
	require.NotNil(t, field.FieldValueBoolean)
	assert.True(t, *field.FieldValueBoolean)
	assert.Nil(t, field.FieldValueText)
	assert.Nil(t, field.FieldValueNumber)

	// changing the type of an existing field clears the old slot
	field, err = ts.fields.UpsertField(ctx, org.ID, entity.ID, FieldInput{
		FieldName: "vip", FieldType: model.FieldTypeText, Value: "gold", SmartCode: priceSmartCode,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, field.PopulatedSlots())
	assert.Nil(t, field.FieldValueBoolean)
	require.NotNil(t, field.FieldValueText)
	assert.Equal(t, "gold", *field.FieldValueText)
}

func TestUpsertFieldRejectsMismatchedValue(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	cases := []FieldInput{
		{FieldName: "a", FieldType: model.FieldTypeText, Value: true, SmartCode: priceSmartCode},
		{FieldName: "b", FieldType: model.FieldTypeNumber, Value: "ten", SmartCode: priceSmartCode},
		{FieldName: "c", FieldType: model.FieldTypeBoolean, Value: 1.0, SmartCode: priceSmartCode},
		{FieldName: "d", FieldType: model.FieldTypeDate, Value: "not-a-date", SmartCode: priceSmartCode},
		{FieldName: "e", FieldType: "blob", Value: "x", SmartCode: priceSmartCode},
		{FieldName: "f", FieldType: model.FieldTypeText, Value: nil, SmartCode: priceSmartCode},
	}
	for _, in := range cases {
		_, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, in)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "field %s should be rejected", in.FieldName)
	}

	fields, err := ts.fields.GetFields(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	assert.Empty(t, fields, "rejected writes must not persist anything")
}

func TestUpsertFieldRejectsBadSmartCode(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)

	_, err := ts.fields.UpsertField(context.Background(), org.ID, entity.ID, FieldInput{
		FieldName: "price", FieldType: model.FieldTypeNumber, Value: 1.0, SmartCode: "bad",
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpsertFieldUnknownEntity(t *testing.T) {
	ts := newTestStores(t)
	orgA := seedOrg(t, ts.db, "Org A", "ORG-A")
	orgB := seedOrg(t, ts.db, "Org B", "ORG-B")
	entity := seedCustomer(t, ts, orgA.ID)

	// an entity in another organization is as good as nonexistent
	_, err := ts.fields.UpsertField(context.Background(), orgB.ID, entity.ID, FieldInput{
		FieldName: "price", FieldType: model.FieldTypeNumber, Value: 1.0, SmartCode: priceSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestBatchUpsertReportsPerField(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	results, err := ts.fields.BatchUpsert(ctx, org.ID, entity.ID, []FieldInput{
		{FieldName: "email", FieldType: model.FieldTypeText, Value: "a@x.com", SmartCode: priceSmartCode},
		{FieldName: "age", FieldType: model.FieldTypeNumber, Value: "old", SmartCode: priceSmartCode},
		{FieldName: "vip", FieldType: model.FieldTypeBoolean, Value: true, SmartCode: priceSmartCode},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, apperr.ErrValidation))
	assert.NoError(t, results[2].Err)

	// the good fields landed despite the bad one
	fields, err := ts.fields.GetFields(ctx, org.ID, entity.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "email", fields[0].FieldName)
	assert.Equal(t, "vip", fields[1].FieldName)
}

func TestDeleteField(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	_, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, FieldInput{
		FieldName: "price", FieldType: model.FieldTypeNumber, Value: 10.0, SmartCode: priceSmartCode,
	})
	require.NoError(t, err)

	require.NoError(t, ts.fields.DeleteField(ctx, org.ID, entity.ID, "price"))
	err = ts.fields.DeleteField(ctx, org.ID, entity.ID, "price")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// the entity itself is untouched
	_, err = ts.entities.Get(ctx, org.ID, entity.ID)
	assert.NoError(t, err)
}

func TestUpsertFieldConcurrent(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	entity := seedCustomer(t, ts, org.ID)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			_, err := ts.fields.UpsertField(ctx, org.ID, entity.ID, FieldInput{
				FieldName: "price", FieldType: model.FieldTypeNumber, Value: v, SmartCode: priceSmartCode,
			})
			assert.NoError(t, err)
		}(float64(i))
	}
	wg.Wait()

	var rows []model.DynamicField
	require.NoError(t, ts.db.
		Where("organization_id = ? AND entity_id = ? AND field_name = ?", org.ID, entity.ID, "price").
		Find(&rows).Error)
	require.Len(t, rows, 1, "concurrent upserts must resolve to a single row")
	require.NotNil(t, rows[0].FieldValueNumber)
	got := *rows[0].FieldValueNumber
	assert.True(t, got >= 0 && got < writers, fmt.Sprintf("value %v must come from one of the writers", got))
}
