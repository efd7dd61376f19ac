package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mercadoforte/backend-caixa/internal/common"
)

// Verifier validates operator tokens minted by the back-office identity
// provider. Tokens are never issued here.
type Verifier struct {
	secret    []byte
	policy ClaimPolicy
	now    func() time.Time
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	MaxShift  time.Duration
}

// NewVerifier constructs an HS256 Verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		policy: ClaimPolicy{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
			MaxShift:  cfg.MaxShift,
		},
		now: time.Now,
	}, nil
}

// WithNow overrides the clock used for expiry checks.
func (v *Verifier) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Parse validates token and returns the operator it names.
func (v *Verifier) Parse(token string) (common.Operator, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Operator{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Operator{}, unauthorized("invalid token", err)
	}
	if v.policy.Algorithm != "" && algorithm != v.policy.Algorithm {
		return common.Operator{}, unauthorized("invalid token", fmt.Errorf("%w: %s", ErrAlgorithm, algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret))
	if err != nil {
		return common.Operator{}, unauthorized("invalid token", err)
	}
	op, err := v.policy.Operator(parsed, algorithm, v.now())
	if err != nil {
		return common.Operator{}, unauthorized("invalid token", err)
	}
	return op, nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
