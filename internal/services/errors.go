package services

import "errors"

// Domain error kinds surfaced to the API layer. Controllers map each kind
// to a specific HTTP status; callers never see a generic failure for a
// condition listed here.
var (
	// ErrNotFound: unknown template/route/stop id.
	ErrNotFound = errors.New("not found")
	// ErrConflict: duplicate active route, double pickup/delivery,
	// finalize on a non-active route.
	ErrConflict = errors.New("conflict")
	// ErrForbidden: cross-driver access to another driver's
	// template/route/stop.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation: malformed stop list or payload.
	ErrValidation = errors.New("validation failed")
	// ErrNoEligibleStudents: generation yields an empty stop set.
	ErrNoEligibleStudents = errors.New("no eligible students today")
)
