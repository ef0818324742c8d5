package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/iliyamo/parking-reservation/internal/repository"
)

const (
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accessCodeLength   = 6
	// maxCodeAttempts bounds the generate-and-check loop.  With 36^6
	// codes a run of collisions this long means the store is misbehaving.
	maxCodeAttempts = 32
)

var errCodeSpaceExhausted = errors.New("could not find an unused access code")

// CodeIssuer produces access codes that no booking, in any state, has
// used before.  Gen is the random source and may be replaced in tests.
type CodeIssuer struct {
	Gen func() (string, error)
}

// NewCodeIssuer returns an issuer drawing codes from crypto/rand.
func NewCodeIssuer() *CodeIssuer { return &CodeIssuer{Gen: randomCode} }

// Issue returns a code that is unused at the time of the check.  The
// unique index on the store closes the window between check and insert.
func (c *CodeIssuer) Issue(ctx context.Context, q repository.Queries) (string, error) {
	gen := c.Gen
	if gen == nil {
		gen = randomCode
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := gen()
		if err != nil {
			return "", err
		}
		taken, err := q.AccessCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errCodeSpaceExhausted
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	b := make([]byte, accessCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// IsAccessCode reports whether s has the shape of an issued code.
func IsAccessCode(s string) bool {
	if len(s) != accessCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
