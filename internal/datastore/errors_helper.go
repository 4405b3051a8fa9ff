// Package datastore provides error handling helpers for database operations
package datastore

import (
	"github.com/tphakala/shiftledger/internal/errors"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// notFoundError creates a not-found error for a missing record
func notFoundError(entity, key string) error {
	return errors.Newf("%s %q not found", entity, key).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("entity", entity).
		Build()
}

// conflictError signals that a guarded write matched no row
func conflictError(message string, context ...any) error {
	builder := errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryConflict)
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

func notOpenError() error {
	return errors.New(errors.ErrStoreNotOpen).
		Component("datastore").
		Category(errors.CategoryState).
		Build()
}
