package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := NotFound("entity", "abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))

	wrapped := fmt.Errorf("loading: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("smart_code", "malformed")
	var ae *Error
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, "smart_code", ae.Field)
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "smart_code")
}

func TestBackingStoreUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := BackingStore(cause)
	assert.True(t, errors.Is(err, ErrBackingStore))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
