// Package identity turns bearer tokens issued by the identity provider into
// authz actors.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/gastro-rechner/internal/authz"
	"github.com/noah-isme/gastro-rechner/internal/common"
)

// Claim names carried next to the registered claims.
const (
	ClaimName  = "name"
	ClaimRoles = "roles"
)

const defaultTTL = 12 * time.Hour

// Config configures a Tokens instance.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	TTL       time.Duration
}

// Tokens parses and mints HS256 identity tokens.
type Tokens struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
	ttl       time.Duration
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	now       func() time.Time
}

// NewTokens constructs Tokens with sane defaults.
func NewTokens(cfg Config) (*Tokens, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("identity: secret is required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "gastro-rechner"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "gastro-rechner-frontend"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Tokens{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		ttl:       ttl,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		now: time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (t *Tokens) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

func unauthorized(err error) *common.AppError {
	return common.NewAppError(common.CodeUnauthorized, "invalid token", http.StatusUnauthorized, err)
}

// Parse validates token and returns the actor it describes.
func (t *Tokens) Parse(token string) (authz.Actor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return authz.Actor{}, common.NewAppError(common.CodeUnauthorized, "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return authz.Actor{}, unauthorized(err)
	}
	if t.validator.Algorithm != "" && algorithm != t.validator.Algorithm {
		return authz.Actor{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.secret), jwt.WithValidate(false))
	if err != nil {
		return authz.Actor{}, unauthorized(err)
	}
	if err := t.validator.Validate(parsed, algorithm, t.now()); err != nil {
		return authz.Actor{}, unauthorized(err)
	}
	return actorFromToken(parsed), nil
}

func actorFromToken(tok jwt.Token) authz.Actor {
	actor := authz.Actor{ID: strings.TrimSpace(tok.Subject())}
	if v, ok := tok.Get(ClaimName); ok {
		if name, ok := v.(string); ok {
			actor.DisplayName = strings.TrimSpace(name)
		}
	}
	if v, ok := tok.Get(ClaimRoles); ok {
		actor.Roles = rolesFromClaim(v)
	}
	return actor
}

func rolesFromClaim(v any) []string {
	switch roles := v.(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		return strings.Fields(strings.ReplaceAll(roles, ",", " "))
	}
	return nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("identity: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("identity: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("identity: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("identity: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("identity: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

// Issue mints a token for actor. It is used by development tooling and tests;
// production tokens come from the identity provider.
func (t *Tokens) Issue(actor authz.Actor) (string, time.Time, error) {
	if !actor.Authenticated() {
		return "", time.Time{}, errors.New("identity: cannot issue a token for an anonymous actor")
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	tok, err := jwt.NewBuilder().
		Subject(actor.ID).
		Issuer(t.issuer).
		Audience([]string{t.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-t.clockSkew)).
		Expiration(expiresAt).
		Claim(ClaimName, actor.DisplayName).
		Claim(ClaimRoles, actor.Roles).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(t.signer, t.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
