package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Private claims carried by operator tokens.
const (
	ClaimName     = "name"
	ClaimBusiness = "business_id"
)

var (
	// ErrNoSubject is returned when a token does not name an operator.
	ErrNoSubject = errors.New("auth: operator token has no subject")
	// ErrNoExpiry is returned for tokens that never expire.
	ErrNoExpiry = errors.New("auth: operator token has no expiry")
	// ErrShiftTooLong is returned when a token stays valid longer than one shift.
	ErrShiftTooLong = errors.New("auth: operator token outlives a shift")
	// ErrAlgorithm is returned when a token was signed with another algorithm.
	ErrAlgorithm = errors.New("auth: operator token signed with unexpected algorithm")
)

// ClaimPolicy decides whether a decoded token may operate the till.
type ClaimPolicy struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	// MaxShift caps how far in the future a token may expire. Zero disables it.
	MaxShift time.Duration
}

// Operator checks tok at now and returns the operator it names.
func (p ClaimPolicy) Operator(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (common.Operator, error) {
	if tok == nil {
		return common.Operator{}, errors.New("auth: operator token is empty")
	}
	if p.Algorithm != "" && algorithm != p.Algorithm {
		return common.Operator{}, fmt.Errorf("%w: %s", ErrAlgorithm, algorithm)
	}
	if tok.Expiration().IsZero() {
		return common.Operator{}, ErrNoExpiry
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if p.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.ClockSkew))
	}
	if p.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		options = append(options, jwt.WithAudience(p.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return common.Operator{}, fmt.Errorf("auth: operator token rejected: %w", err)
	}

	if p.MaxShift > 0 && tok.Expiration().Sub(now) > p.MaxShift+p.ClockSkew {
		return common.Operator{}, ErrShiftTooLong
	}

	id := strings.TrimSpace(tok.Subject())
	if id == "" {
		return common.Operator{}, ErrNoSubject
	}
	return common.Operator{
		ID:         id,
		Name:       stringClaim(tok, ClaimName),
		BusinessID: stringClaim(tok, ClaimBusiness),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	raw, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}
