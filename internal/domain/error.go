package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountBlocked      = errors.New("account is blocked")
	ErrAccountUnregistered = errors.New("account is not registered")
	ErrAlreadyCheckedIn    = errors.New("already checked in today")
	ErrRateLimited         = errors.New("too many requests")

	// Card-key redemption errors
	ErrCodeNotFound    = errors.New("card key not found")
	ErrCodeExpired     = errors.New("card key expired")
	ErrCodeExhausted   = errors.New("card key uses exhausted")
	ErrCodeAlreadyUsed = errors.New("card key already redeemed by this account")

	ErrInvalidExecContext = errors.New("invalid transaction executor")
)

// ReferenceError reports that no provider identifier could be extracted from
// the submitted reference. It is raised before any remote call, so the
// attempt is never charged.
type ReferenceError struct {
	Reference string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("no verification identifier in reference %q", e.Reference)
}

// StepError is a terminal failure reported by the provider during one of the
// workflow steps, either as a non-2xx response or as an explicit error step.
type StepError struct {
	Step     string
	HTTPCode int
	ErrorIDs []string
}

func (e *StepError) Error() string {
	if len(e.ErrorIDs) > 0 {
		return fmt.Sprintf("step %s failed: %v", e.Step, e.ErrorIDs)
	}
	return fmt.Sprintf("step %s failed with status %d", e.Step, e.HTTPCode)
}

// UploadError names the artifact whose upload fell outside the 2xx range.
type UploadError struct {
	FileName string
	HTTPCode int
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed with status %d", e.FileName, e.HTTPCode)
}
