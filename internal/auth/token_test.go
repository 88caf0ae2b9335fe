package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/auth"
)

func TestIssueAndVerify(t *testing.T) {
	token, err := auth.Issue("s3cret", "shop", "owner", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := auth.Verify("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "shop", claims.Subject)
	assert.Equal(t, "owner", claims.Role)

	_, err = auth.Verify("other", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	token, err := auth.Issue("s3cret", "shop", "owner", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = auth.Verify("s3cret", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssueRequiresSecret(t *testing.T) {
	_, err := auth.Issue("", "shop", "owner", time.Hour, time.Now())
	assert.Error(t, err)
}
