package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
)

const followsSmartCode = "SALON.CRM.CUSTOMER.REL.FOLLOWS.V1"

func seedPair(t *testing.T, ts *testStores, orgID string) (*model.Entity, *model.Entity) {
	t.Helper()
	ctx := context.Background()
	a, err := ts.entities.Create(ctx, orgID, CreateEntityInput{
		EntityType: "customer", EntityName: "A", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)
	b, err := ts.entities.Create(ctx, orgID, CreateEntityInput{
		EntityType: "customer", EntityName: "B", SmartCode: customerSmartCode,
	})
	require.NoError(t, err)
	return a, b
}

func TestRelationshipCreateAndFind(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	a, b := seedPair(t, ts, org.ID)
	ctx := context.Background()

	rel, err := ts.rels.Create(ctx, org.ID, CreateRelationshipInput{
		FromEntityID:     a.ID,
		ToEntityID:       b.ID,
		RelationshipType: "follows",
		SmartCode:        followsSmartCode,
		RelationshipData: datatypes.JSONMap{"since": "2026"},
	})
	require.NoError(t, err)
	assert.True(t, rel.IsActive)

	// direction is disjoint: a sees it outgoing, b sees it incoming
	out, err := ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionOutgoing, "", false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b.ID, out[0].ToEntityID)

	in, err := ts.rels.FindByEndpoint(ctx, org.ID, b.ID, DirectionIncoming, "", false)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, a.ID, in[0].FromEntityID)

	none, err := ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionIncoming, "", false)
	require.NoError(t, err)
	assert.Empty(t, none)

	// type filter
	typed, err := ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionOutgoing, "parent_of", false)
	require.NoError(t, err)
	assert.Empty(t, typed)
}

func TestRelationshipRejectsInvalidDirection(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	a, _ := seedPair(t, ts, org.ID)

	_, err := ts.rels.FindByEndpoint(context.Background(), org.ID, a.ID, Direction("sideways"), "", false)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRelationshipRequiresValidEndpoints(t *testing.T) {
	ts := newTestStores(t)
	orgA := seedOrg(t, ts.db, "Org A", "ORG-A")
	orgB := seedOrg(t, ts.db, "Org B", "ORG-B")
	a, _ := seedPair(t, ts, orgA.ID)
	foreign, _ := seedPair(t, ts, orgB.ID)
	ctx := context.Background()

	// an endpoint from another organization is a not-found, not a leak
	_, err := ts.rels.Create(ctx, orgA.ID, CreateRelationshipInput{
		FromEntityID:     a.ID,
		ToEntityID:       foreign.ID,
		RelationshipType: "follows",
		SmartCode:        followsSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = ts.rels.Create(ctx, orgA.ID, CreateRelationshipInput{
		FromEntityID:     a.ID,
		ToEntityID:       "00000000-0000-0000-0000-00000000dead",
		RelationshipType: "follows",
		SmartCode:        followsSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = ts.rels.Create(ctx, orgA.ID, CreateRelationshipInput{
		FromEntityID:     a.ID,
		ToEntityID:       "",
		RelationshipType: "follows",
		SmartCode:        followsSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRelationshipDeactivateReactivate(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	a, b := seedPair(t, ts, org.ID)
	ctx := context.Background()

	rel, err := ts.rels.Create(ctx, org.ID, CreateRelationshipInput{
		FromEntityID: a.ID, ToEntityID: b.ID,
		RelationshipType: "follows", SmartCode: followsSmartCode,
	})
	require.NoError(t, err)

	require.NoError(t, ts.rels.Deactivate(ctx, org.ID, rel.ID))

	active, err := ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionOutgoing, "", false)
	require.NoError(t, err)
	assert.Empty(t, active, "inactive edges are hidden by default")

	all, err := ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionOutgoing, "", true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	require.NoError(t, ts.rels.Reactivate(ctx, org.ID, rel.ID))
	active, err = ts.rels.FindByEndpoint(ctx, org.ID, a.ID, DirectionOutgoing, "", false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	// unknown id is a not-found
	err = ts.rels.Deactivate(ctx, org.ID, "00000000-0000-0000-0000-00000000dead")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMembershipEdgeEndpointExceptions(t *testing.T) {
	ts := newTestStores(t)
	org := seedOrg(t, ts.db, "Acme", "ACME")
	user := seedPlatformUser(t, ts.db, "owner@acme.test")
	ctx := context.Background()

	// a platform user entity may be the from endpoint, and the organization
	// record itself may be the to endpoint, for membership edges only
	rel, err := ts.rels.Create(ctx, org.ID, CreateRelationshipInput{
		FromEntityID:     user.ID,
		ToEntityID:       org.ID,
		RelationshipType: model.RelTypeUserMemberOfOrg,
		SmartCode:        "PLATFORM.MEMBERSHIP.USER.ORG.V1",
		RelationshipData: datatypes.JSONMap{"role": "owner"},
	})
	require.NoError(t, err)
	assert.Equal(t, org.ID, rel.OrganizationID)

	// the same platform user is not valid on an ordinary edge type
	_, err = ts.rels.Create(ctx, org.ID, CreateRelationshipInput{
		FromEntityID:     user.ID,
		ToEntityID:       org.ID,
		RelationshipType: "follows",
		SmartCode:        followsSmartCode,
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// and a platform user as the to endpoint gets no exception either
	a, _ := seedPair(t, ts, org.ID)
	_, err = ts.rels.Create(ctx, org.ID, CreateRelationshipInput{
		FromEntityID:     a.ID,
		ToEntityID:       user.ID,
		RelationshipType: model.RelTypeUserMemberOfOrg,
		SmartCode:        "PLATFORM.MEMBERSHIP.USER.ORG.V1",
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
