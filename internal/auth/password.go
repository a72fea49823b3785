package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
)

// MaxPasswordLength is the bcrypt input limit.
const MaxPasswordLength = 72

// ValidatePassword checks a new password against the policy.
func ValidatePassword(field, password string) error {
	switch {
	case utf8.RuneCountInString(password) < model.MinPasswordLength:
		return apperr.Invalid(field, fmt.Sprintf("must be at least %d characters", model.MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return apperr.Invalid(field, fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// HashPassword validates and hashes a password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword("password", password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
