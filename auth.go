package main

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password hashing lives on the user-record write path (register,
// change-password). The session manager only ever calls checkPassword.

func hashPassword(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
}

// checkPassword reports whether plaintext matches the stored hash.
// bcrypt's comparison is constant-time; a mismatch is not an error.
func checkPassword(plaintext string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

func validPassword(password string) bool {
	return len(password) >= 6
}

// normalizeIdentifier lowercases and trims an email or username so
// lookups and uniqueness behave case-insensitively.
func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
