package logingate

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// StaticVerifier is an IdentityVerifier backed by a fixed user table.
// Meant for demos and tests; a real deployment plugs in its identity
// backend behind the IdentityVerifier interface.
type StaticVerifier struct {
	users map[string]staticUser
}

type staticUser struct {
	password string
	identity Identity
}

// NewStaticVerifier creates an empty static verifier
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{users: make(map[string]staticUser)}
}

// AddUser registers a user with a plaintext password
func (v *StaticVerifier) AddUser(identity Identity, password string) {
	v.users[strings.ToLower(identity.Email)] = staticUser{
		password: password,
		identity: identity,
	}
}

// Verify checks the email and password against the user table
func (v *StaticVerifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	user, exists := v.users[strings.ToLower(email)]
	if !exists {
		return Identity{}, errors.New("unknown user")
	}
	if subtle.ConstantTimeCompare([]byte(user.password), []byte(password)) != 1 {
		return Identity{}, errors.New("wrong password")
	}
	return user.identity, nil
}
