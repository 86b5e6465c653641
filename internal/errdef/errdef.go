package errdef

import (
	"errors"
	"fmt"
)

func NewForbidden(format string, a ...any) error {
	return forbidden{fmt.Errorf(format, a...)}
}

type forbidden struct{ error }

func IsForbidden(err error) bool {
	var e forbidden
	return errors.As(err, &e)
}

func NewBadRequest(format string, a ...any) error {
	return badRequest{fmt.Errorf(format, a...)}
}

type badRequest struct{ error }

func IsBadRequest(err error) bool {
	var e badRequest
	return errors.As(err, &e)
}

func NewUnsupportedMediaType(format string, a ...any) error {
	return unsupportedMediaType{fmt.Errorf(format, a...)}
}

type unsupportedMediaType struct{ error }

func IsUnsupportedMediaType(err error) bool {
	var e unsupportedMediaType
	return errors.As(err, &e)
}

func NewUnauthorized(format string, a ...any) error {
	return unauthorized{fmt.Errorf(format, a...)}
}

type unauthorized struct{ error }

func IsUnauthorized(err error) bool {
	var e unauthorized
	return errors.As(err, &e)
}

// NewNotFound creates an error representing a resource that could not be found. Resources owned
// by another project are reported as not found as well.
func NewNotFound(format string, a ...any) error {
	return notFound{fmt.Errorf(format, a...)}
}

type notFound struct{ error }

// IsNotFound returns true if err is an error representing a resource that could not be found and false otherwise.
func IsNotFound(err error) bool {
	var e notFound
	return errors.As(err, &e)
}

// NewConflict creates an error representing a conflicting state transition.
func NewConflict(format string, a ...any) error {
	return conflict{fmt.Errorf(format, a...)}
}

type conflict struct{ error }

// IsConflict returns true if err is an error representing a conflict and false otherwise.
func IsConflict(err error) bool {
	var e conflict
	return errors.As(err, &e)
}

// NewInvalidSpec creates an error representing a cluster request the caller has to correct.
// It is never retried.
func NewInvalidSpec(format string, a ...any) error {
	return invalidSpec{fmt.Errorf(format, a...)}
}

type invalidSpec struct{ error }

// IsInvalidSpec returns true if err is an error representing an invalid request and false otherwise.
func IsInvalidSpec(err error) bool {
	var e invalidSpec
	return errors.As(err, &e)
}

// NewCatalogUnavailable creates an error representing a compute or network provider that could
// not be reached or rejected the request after retrying.
func NewCatalogUnavailable(format string, a ...any) error {
	return catalogUnavailable{fmt.Errorf(format, a...)}
}

type catalogUnavailable struct{ error }

// IsCatalogUnavailable returns true if err is an error representing an unavailable provider and
// false otherwise.
func IsCatalogUnavailable(err error) bool {
	var e catalogUnavailable
	return errors.As(err, &e)
}

// NewProvisioningFailed creates an error representing a cluster whose provisioning ended in the
// ERROR state. It is recorded on the cluster and never returned to the creator.
func NewProvisioningFailed(format string, a ...any) error {
	return provisioningFailed{fmt.Errorf(format, a...)}
}

type provisioningFailed struct{ error }

func IsProvisioningFailed(err error) bool {
	var e provisioningFailed
	return errors.As(err, &e)
}
