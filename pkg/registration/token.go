package registration

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/device-gate/pkg/errors"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxTokenAttempts bounds the generate-and-check loop before falling back
// to a deterministic unique value
const maxTokenAttempts = 10

// GenerateRegistrationToken produces a registration token of the form
// REG-XXXXXXXX that does not collide with any currently stored token.
// Generation is read-only against storage; nothing is persisted until the
// caller stores the registration.
//
// Candidates are drawn from crypto/rand and checked for existence. After
// maxTokenAttempts collisions the token is derived from a fresh UUID
// instead, so generation never fails on collisions alone.
func GenerateRegistrationToken(ctx context.Context, repo RegistrationRepository) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := randomToken()
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to generate random token")
		}

		exists, err := repo.TokenExists(ctx, token)
		if err != nil {
			return "", errors.StorageWrap(err, "failed to check token existence")
		}
		if !exists {
			return token, nil
		}

		slog.Debug("Registration token collision, retrying", "attempt", attempt+1)
	}

	// Fallback: derive from a UUID so the loop is guaranteed to terminate
	fallback := TokenPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:TokenLength]
	slog.Warn("Registration token generation exhausted retries, using uuid fallback", "attempts", maxTokenAttempts)
	return fallback, nil
}

// NormalizeToken uppercases and trims a user-entered token so lookups are
// case-insensitive
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func randomToken() (string, error) {
	var b strings.Builder
	b.WriteString(TokenPrefix)
	for i := 0; i < TokenLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}
