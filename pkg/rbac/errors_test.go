package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceError(t *testing.T) {
	cause := errors.New("timeout")
	err := sourceErr(SourceRoles, cause)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "roles")
	assert.Contains(t, err.Error(), "timeout")
}

func TestNotFound(t *testing.T) {
	err := NotFound("role", "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "role r1: not found", err.Error())
}

func TestInvalid(t *testing.T) {
	err := invalid("limit %d", 3)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: limit 3", err.Error())
}
