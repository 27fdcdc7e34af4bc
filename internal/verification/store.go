// Package verification holds short-lived numeric codes bound to an email
// address, used for password reset and affiliated-email verification.
package verification

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// CodeTTL is how long an issued code stays usable.
const CodeTTL = 30 * time.Minute

const (
	codeMin = 100000
	codeMax = 999999
)

// Outcome is the result of checking a submitted code.
type Outcome int

const (
	NotFound Outcome = iota
	Valid
	Invalid
	Expired
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	default:
		return "not_found"
	}
}

// Result carries the outcome and, when Valid, the subject the code was issued for.
type Result struct {
	Outcome   Outcome
	SubjectID string
}

// Store is keyed by email; at most one code exists per email and Issue
// replaces any previous one. Peek never deletes a matching code, Consume
// deletes it. Both delete an expired entry on sight.
type Store interface {
	Issue(ctx context.Context, email string, subjectID string) (string, error)
	Peek(ctx context.Context, email string, code string) (Result, error)
	Consume(ctx context.Context, email string, code string) (Result, error)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(codeMin)).String(), nil
}
