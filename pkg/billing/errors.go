package billing

import "errors"

var (
	ErrMissingEventID   = errors.New("billing event is missing an id")
	ErrMissingAppUserID = errors.New("billing event is missing an app user id")

	ErrSnapshotNotFound = errors.New("entitlement snapshot not found")

	ErrStoreConflict = errors.New("storage transaction conflict not resolved")

	ErrInvalidCatalog       = errors.New("invalid product catalog")
	ErrFailedToLoadCatalog  = errors.New("failed to load product catalog")
	ErrUnknownStoreDriver   = errors.New("unknown entitlement store driver")
	ErrFailedToReadSnapshot = errors.New("failed to read entitlement snapshot")
)
