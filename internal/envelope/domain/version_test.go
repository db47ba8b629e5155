package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

func TestVersionString(t *testing.T) {
	assert.Equal(t, "v1", domain.DefaultVersion.String())
	assert.Equal(t, "v42", domain.Version(42).String())
}

func TestVersionIncrement(t *testing.T) {
	assert.Equal(t, domain.Version(2), domain.DefaultVersion.Increment())
}

func TestParseVersion(t *testing.T) {
	v, err := domain.ParseVersion("v7")
	require.NoError(t, err)
	assert.Equal(t, domain.Version(7), v)

	_, err = domain.ParseVersion("7")
	assert.Error(t, err)

	_, err = domain.ParseVersion("vx")
	assert.Error(t, err)
}
