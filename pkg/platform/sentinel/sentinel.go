package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint or duplicate create
// - ErrRevisionMismatch: optimistic-concurrency revision has advanced
// - ErrImmutable: chart structure is frozen (approved or superseded)
// - ErrInvalidState: entity in wrong lifecycle state for the operation
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrRevisionMismatch = errors.New("revision mismatch")
	ErrImmutable        = errors.New("immutable")
	ErrInvalidState     = errors.New("invalid state")
)
