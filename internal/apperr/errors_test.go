package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorWrapsSentinel(t *testing.T) {
	err := fmt.Errorf("decide: %w", Validation("reason", "is required"))

	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "is required", ve.Fields["reason"])
}

func TestFieldsErr(t *testing.T) {
	f := Fields{}
	assert.NoError(t, f.Err())

	f.Add("name", "is required")
	f.Add("name", "ignored")
	f.Add("company", "is required")

	err := f.Err()
	assert.EqualError(t, err, "validation failed: company: is required; name: is required")
}

func TestKinds(t *testing.T) {
	assert.True(t, errors.Is(NotFound("certification"), ErrNotFound))
	assert.EqualError(t, NotFound("certification"), "certification not found")
	assert.True(t, errors.Is(Forbidden("not owner"), ErrForbidden))
	assert.True(t, errors.Is(Conflict("status %s is final", "VERIFIED"), ErrConflict))
	assert.EqualError(t, Conflict("status %s is final", "VERIFIED"), "conflict: status VERIFIED is final")
}
