package quota

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuthority_MintAndVerify(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testTime)
	auth := NewAdminAuthority([]byte("super-secret"), 15*time.Minute, clock)

	assert.True(t, auth.VerifySecret("super-secret"))
	assert.False(t, auth.VerifySecret("guess"))

	token, err := auth.Mint()
	require.NoError(t, err)
	assert.NoError(t, auth.Verify(token))
}

func TestAdminAuthority_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testTime)
	auth := NewAdminAuthority([]byte("super-secret"), 15*time.Minute, clock)

	token, err := auth.Mint()
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	assert.ErrorIs(t, auth.Verify(token), ErrBadAdminToken)
}

func TestAdminAuthority_RejectsForeignToken(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testTime)
	auth := NewAdminAuthority([]byte("super-secret"), 15*time.Minute, clock)
	other := NewAdminAuthority([]byte("different-secret"), 15*time.Minute, clock)

	token, err := other.Mint()
	require.NoError(t, err)

	assert.ErrorIs(t, auth.Verify(token), ErrBadAdminToken)
	assert.ErrorIs(t, auth.Verify("not-a-jwt"), ErrBadAdminToken)
}
