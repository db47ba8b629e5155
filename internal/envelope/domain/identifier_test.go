package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

func TestNewIdentifier(t *testing.T) {
	id, err := domain.New(domain.KindEntity, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Entity", id.DataIdentifier())
	assert.Equal(t, "e1", id.KeyIdentifier())

	_, err = domain.New(domain.IdentifierKind("Bogus"), "e1")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifierKind)

	_, err = domain.New(domain.KindEntity, "")
	assert.ErrorIs(t, err, domain.ErrEmptyIdentifierID)
}

func TestIdentifierKindRouting(t *testing.T) {
	assert.True(t, domain.KindUser.IsGlobal())
	assert.True(t, domain.KindUserAuth.IsGlobal())
	assert.False(t, domain.KindMerchant.IsGlobal())
	assert.False(t, domain.KindEntity.IsGlobal())

	assert.True(t, domain.KindEntity.RequiresCustodian())
	assert.False(t, domain.KindMerchant.RequiresCustodian())
	assert.False(t, domain.KindUser.RequiresCustodian())
}
