package errdef_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dhis2-sre/mq-manager/internal/errdef"

	"github.com/stretchr/testify/assert"
)

func TestIsForbidden(t *testing.T) {
	assert.False(t, errdef.IsForbidden(errors.New("some error")))
	assert.True(t, errdef.IsForbidden(errdef.NewForbidden("some error")))
}

func TestIsBadRequest(t *testing.T) {
	assert.False(t, errdef.IsBadRequest(errors.New("some error")))
	assert.True(t, errdef.IsBadRequest(errdef.NewBadRequest("some error")))
}

func TestIsUnsupportedMediaType(t *testing.T) {
	assert.False(t, errdef.IsUnsupportedMediaType(errors.New("some error")))
	assert.True(t, errdef.IsUnsupportedMediaType(errdef.NewUnsupportedMediaType("some error")))
}

func TestIsUnauthorized(t *testing.T) {
	assert.False(t, errdef.IsUnauthorized(errors.New("some error")))
	assert.True(t, errdef.IsUnauthorized(errdef.NewUnauthorized("some error")))
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, errdef.IsNotFound(errors.New("some error")))
	assert.True(t, errdef.IsNotFound(errdef.NewNotFound("some error")))
}

func TestIsConflict(t *testing.T) {
	assert.False(t, errdef.IsConflict(errors.New("some error")))
	assert.True(t, errdef.IsConflict(errdef.NewConflict("some error")))
}

func TestIsInvalidSpec(t *testing.T) {
	assert.False(t, errdef.IsInvalidSpec(errors.New("some error")))
	assert.False(t, errdef.IsInvalidSpec(errdef.NewBadRequest("some error")))
	assert.True(t, errdef.IsInvalidSpec(errdef.NewInvalidSpec("size must be at least %d", 1)))
}

func TestIsCatalogUnavailable(t *testing.T) {
	assert.False(t, errdef.IsCatalogUnavailable(errors.New("some error")))
	assert.True(t, errdef.IsCatalogUnavailable(errdef.NewCatalogUnavailable("some error")))
}

func TestIsProvisioningFailed(t *testing.T) {
	assert.False(t, errdef.IsProvisioningFailed(errors.New("some error")))
	assert.True(t, errdef.IsProvisioningFailed(errdef.NewProvisioningFailed("some error")))
}

func TestWrappedErrorsAreClassified(t *testing.T) {
	err := fmt.Errorf("failed to find cluster: %w", errdef.NewNotFound("cluster %q doesn't exist", "id"))

	assert.True(t, errdef.IsNotFound(err))
	assert.ErrorContains(t, err, `cluster "id" doesn't exist`)
}
