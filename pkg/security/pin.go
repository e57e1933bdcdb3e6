package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed = errors.New("pin hashing failed")
	ErrPINTooShort   = errors.New("pin too short")
	ErrPINMismatch   = errors.New("pin does not match")
	MinPINLen        = 4
)

// PINHasher hashes and checks the short PINs staff use to open a session
type PINHasher interface {
	Hash(pin string) (string, error)
	Compare(hashedPIN, pin string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a PIN hasher using bcrypt
func NewBcryptHasher(cost int) PINHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(pin string) (string, error) {
	if len(pin) < MinPINLen {
		return "", ErrPINTooShort
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedPIN, pin string) error {
	if hashedPIN == "" {
		return ErrPINMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin)); err != nil {
		return ErrPINMismatch
	}
	return nil
}
