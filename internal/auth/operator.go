package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Operator is the single back-office account allowed to mutate the ledger.
// Its password hash comes from configuration, never from the database.
type Operator struct {
	Email        string
	PasswordHash string
}

// Authenticate checks credentials. The bcrypt check runs even when the
// email does not match.
func (o Operator) Authenticate(email, password string) error {
	if o.Email == "" || o.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(o.Email)),
	) == 1
	passwordOK := CheckPassword(password, o.PasswordHash)
	if !emailOK || !passwordOK {
		return ErrInvalidCredentials
	}
	return nil
}
