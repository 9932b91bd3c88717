package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// OperatorKeyHeader carries the faucet operator key.
const OperatorKeyHeader = "X-Operator-Key"

var ErrOperatorKey = errors.New("invalid operator key")

// OperatorGate compares presented operator keys against a bcrypt hash.
type OperatorGate struct {
	hash []byte
}

// NewOperatorGate returns nil when no hash is configured, which disables the
// operator-only routes.
func NewOperatorGate(hash string) *OperatorGate {
	if hash == "" {
		return nil
	}
	return &OperatorGate{hash: []byte(hash)}
}

// Check reports whether key matches the configured hash.
func (g *OperatorGate) Check(key string) error {
	if g == nil || key == "" {
		return ErrOperatorKey
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(key)); err != nil {
		return ErrOperatorKey
	}
	return nil
}

// HashOperatorKey produces the value to place in OPERATOR_KEY_HASH.
func HashOperatorKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
