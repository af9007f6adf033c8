// Package common defines shared sentinel errors used across the storage,
// migration and session layers of toshinote. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")

	// Session-level errors.
	ErrLastNotebook = errors.New("the last notebook cannot be deleted")

	// Export errors.
	ErrNothingToExport = errors.New("nothing to export")
)
