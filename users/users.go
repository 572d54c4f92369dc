package users

import (
	"crypto/rand"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/findaly/findaly/internal/errors"
)

// Provider records how an account signs in.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderOIDC     Provider = "oidc"
)

type User struct {
	ID           string    `json:"id"`                  // Unique identifier for the user
	Email        string    `json:"email"`               // Normalized email address
	Name         string    `json:"name,omitempty"`      // Display name
	PasswordHash string    `json:"-"`                   // bcrypt hash - never serialize
	Provider     Provider  `json:"provider,omitempty"`  // How the account signs in
	CreatedAt    time.Time `json:"created_at"`          // When the account was registered
	LastLogin    time.Time `json:"last_login,omitzero"` // Last successful login
}

// NormalizeEmail lowercases and trims an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email address %q", email)
	}
	return email, nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "at least 8 characters")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "needs an uppercase letter")
	}
	if !hasLower {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "needs a lowercase letter")
	}
	if !hasNumber {
		return apperrors.Wrapf(apperrors.ErrWeakPassword, "needs a number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// DummyPasswordHash returns a bcrypt hash of a random secret. Comparing
// against it costs the same as checking a real account's password.
func DummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		b, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("users: dummy password hash: %v", err))
		}
		dummyHash = string(b)
	})
	return dummyHash
}

func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword reports whether password matches the user's stored hash.
// Accounts created through social login have no hash and never match.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// DisplayName falls back to the local part of the email address.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
