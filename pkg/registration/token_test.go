package registration

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^REG-[A-Z0-9]{8}$`)

func TestGenerateRegistrationToken_Format(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		token, err := GenerateRegistrationToken(ctx, repo)
		require.NoError(t, err)
		assert.Regexp(t, tokenPattern, token)
	}
}

func TestGenerateRegistrationToken_AvoidsStoredTokens(t *testing.T) {
	repo := NewInMemRegistrationRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	// Store a handful of tokens and check new ones never collide
	stored := map[string]bool{}
	for i := 0; i < 5; i++ {
		token, err := GenerateRegistrationToken(ctx, repo)
		require.NoError(t, err)
		assert.False(t, stored[token])
		stored[token] = true

		reg := newTestRegistration("acme", "device-"+token, token, now)
		_, err = repo.UpsertRegistration(ctx, reg)
		require.NoError(t, err)
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "REG-ABCD1234", NormalizeToken("reg-abcd1234"))
	assert.Equal(t, "REG-ABCD1234", NormalizeToken("  REG-abcd1234  "))
	assert.Equal(t, "REG-ABCD1234", NormalizeToken("REG-ABCD1234"))
}
