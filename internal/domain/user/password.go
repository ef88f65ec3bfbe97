package user

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/alexedwards/argon2id"
)

// Password strength errors, one per unmet requirement so registration can
// tell the caller exactly what to fix.
var (
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters long")
	ErrPasswordNoUppercase  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase  = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoDigit      = errors.New("password must contain at least one number")
	ErrPasswordNoSpecial    = errors.New("password must contain at least one special character")
	ErrPasswordHashMismatch = errors.New("password does not match")
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

const specialChars = `!@#$%^&*(),.?":{}|<>`

// argon2idParams uses OWASP minimum parameters.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ValidatePassword checks a candidate password against the strength policy.
// Returns the first unmet requirement, or nil when all are satisfied.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		case strings.ContainsRune(specialChars, c):
			hasSpecial = true
		}
	}
	switch {
	case !hasUpper:
		return ErrPasswordNoUppercase
	case !hasLower:
		return ErrPasswordNoLowercase
	case !hasDigit:
		return ErrPasswordNoDigit
	case !hasSpecial:
		return ErrPasswordNoSpecial
	}
	return nil
}

// HashPassword returns an Argon2id hash of the password in PHC format.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2idParams)
}

// VerifyPassword compares a candidate password against a stored hash.
// Returns ErrPasswordHashMismatch on mismatch. Malformed hashes surface as
// errors rather than panics.
func VerifyPassword(password, storedHash string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	match, err := argon2id.ComparePasswordAndHash(password, storedHash)
	if err != nil {
		return err
	}
	if !match {
		return ErrPasswordHashMismatch
	}
	return nil
}
