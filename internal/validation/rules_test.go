package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/cripta/envelopesvc/internal/errors"
)

func TestNotBlank(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{name: "valid string", input: "Entity", shouldErr: false},
		{name: "only spaces", input: "   ", shouldErr: true},
		{name: "only tabs", input: "\t\t", shouldErr: true},
		{name: "empty string", input: "", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NotBlank.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	assert.Nil(t, WrapValidationError(nil))

	wrapped := WrapValidationError(errors.New("identifier is required"))
	assert.True(t, apperrors.Is(wrapped, apperrors.ErrInvalidInput))
	assert.Contains(t, wrapped.Error(), "identifier is required")
}
