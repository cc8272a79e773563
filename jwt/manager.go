package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope identifies what a token is good for. A token presented for an
// operation with a different scope fails verification with ErrWrongScope.
type Scope string

const (
	ScopeAccess       Scope = "access_token"
	ScopeRefresh      Scope = "refresh_token"
	ScopeVerification Scope = "email_verification"
)

// Verification failure taxonomy. Callers map these onto their own error
// surface; nothing below leaks key material or claim contents.
var (
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("token signature invalid")
	ErrMalformed    = errors.New("token malformed")
	ErrWrongScope   = errors.New("token scope mismatch")
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Config carries the key material and per-scope lifetimes. PrivateKey is the
// HMAC secret for hs256, or an ed25519 private key (raw or PEM) otherwise.
type Config struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	SigningMethod   SigningMethod
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
}

// Claims is the signed claim set embedded in every token. Subject is the
// principal ID, ID (jti) is the revocation key.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Scope Scope  `json:"scope"`
	jwt.RegisteredClaims
}

// Manager mints and verifies tokens. Immutable after NewManager.
type Manager struct {
	config     Config
	signKey    interface{}
	verifyKey  interface{}
	signMethod jwt.SigningMethod
}

// NewManager validates the configuration and pre-parses key material so
// issue and verify never fail on malformed keys at request time.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.signMethod = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.signMethod = jwt.SigningMethodEdDSA
		m.signKey = priv
		m.verifyKey = pub
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// Issue mints a token for the principal with the given scope. The lifetime
// is fixed per scope by the configuration; the returned claims include the
// generated jti so callers can index it for later revocation.
func (m *Manager) Issue(principalID, role string, scope Scope) (string, *Claims, error) {
	ttl, err := m.ttlFor(scope)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		Role:  role,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(m.signMethod, claims).SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Verify checks signature, expiry, registered claims, and scope. Failures
// are classified as ErrExpired, ErrBadSignature, ErrMalformed, or
// ErrWrongScope; expiry is checked by the parser before scope, so an expired
// token reports ErrExpired regardless of its scope.
func (m *Manager) Verify(tokenStr string, scope Scope) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if claims.Scope != scope {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongScope, claims.Scope, scope)
	}

	return claims, nil
}

// RemainingValidity returns how long the claims are still live, clamped at
// zero. Used to size revocation record TTLs.
func RemainingValidity(claims *Claims, now time.Time) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Manager) ttlFor(scope Scope) (time.Duration, error) {
	switch scope {
	case ScopeAccess:
		return m.config.AccessTTL, nil
	case ScopeRefresh:
		return m.config.RefreshTTL, nil
	case ScopeVerification:
		if m.config.VerificationTTL <= 0 {
			return 0, errors.New("verification TTL not configured")
		}
		return m.config.VerificationTTL, nil
	default:
		return 0, fmt.Errorf("unknown token scope %q", scope)
	}
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		// Issuer/audience/nbf mismatches and anything unrecognized count as
		// malformed for callers; the distinction only matters in logs.
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
