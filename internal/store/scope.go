// Package store implements the four tenant-scoped stores over the shared
// six-table schema: entities, dynamic data, relationships, and the
// transaction ledger. Every operation takes the organization id from the
// caller's resolved authorization context; the scope guard here is the
// enforcement point that makes an unscoped read or write impossible.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/pkg/metrics"
)

// scoped narrows db to one organization. An empty organization id is a hard
// tenant isolation failure, never a silent empty result. The stores call
// this even when the caller already filtered: defense in depth against a
// call site forgetting the filter.
func scoped(ctx context.Context, db *gorm.DB, organizationID string) (*gorm.DB, error) {
	if organizationID == "" {
		metrics.IsolationDenialCounter.Inc()
		return nil, apperr.TenantIsolation("operation requires a resolved organization context")
	}
	return db.WithContext(ctx).Where("organization_id = ?", organizationID), nil
}

// stampOrganization resolves the organization id for a write. A payload that
// names a different organization than the context is rejected, never
// rewritten.
func stampOrganization(contextOrg, payloadOrg string) (string, error) {
	if contextOrg == "" {
		metrics.IsolationDenialCounter.Inc()
		return "", apperr.TenantIsolation("write requires a resolved organization context")
	}
	if payloadOrg != "" && payloadOrg != contextOrg {
		metrics.IsolationDenialCounter.Inc()
		return "", apperr.TenantIsolation("payload organization_id does not match the request context")
	}
	return contextOrg, nil
}

// translateErr maps gorm and context errors onto the error taxonomy. The
// resource/id pair names what was being looked up; a row that exists in a
// different organization surfaces as the same not-found.
func translateErr(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(resource + " violates a uniqueness constraint")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.BackingStore(err)
	default:
		return apperr.BackingStore(err)
	}
}
