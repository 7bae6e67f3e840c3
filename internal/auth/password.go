// Package auth is the credential service: password hashing, recovery codes,
// bearer-token issuance and the identifiers used by both identity schemes.
package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper   = errors.New("password must contain at least 1 uppercase letter")
	ErrPasswordNoSpecial = errors.New("password must contain at least 1 special character")
	ErrUsernameLength    = errors.New("username must be 3 to 30 characters")
	ErrUsernameCharset   = errors.New("username may only contain letters, numbers, and underscores")
)

const specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return ErrPasswordNoUpper
	}
	if !strings.ContainsAny(password, specialChars) {
		return ErrPasswordNoSpecial
	}
	return nil
}

// ValidateUsername enforces the username policy.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 30 {
		return ErrUsernameLength
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return ErrUsernameCharset
		}
	}
	return nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}
