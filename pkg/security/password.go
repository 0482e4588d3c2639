package security

import (
	"crypto/subtle"
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed    = errors.New("password hashing failed")
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidPIN       = errors.New("pin must be exactly 6 digits")
	MinPasswordLen      = 6
)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// PasswordHasher provides interface for password operations
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost   int
	pepper string
}

// NewBcryptHasher creates a password hasher using bcrypt. The pepper is
// appended to every password before hashing and comparing.
func NewBcryptHasher(cost int, pepper string) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost, pepper: pepper}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password+b.pepper), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password+b.pepper))
}

// ValidPIN reports whether s is a six digit PIN.
func ValidPIN(s string) bool {
	return pinPattern.MatchString(s)
}

// EqualConstantTime compares two secrets without leaking their common prefix length.
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
