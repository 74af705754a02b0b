package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig selects how incoming tokens are verified. The service never
// issues tokens: a gateway signs them with the matching key.
type JWTConfig struct {
	// Secret is the HMAC-SHA256 key, used only when PublicKeyPEM is empty.
	Secret string
	// PublicKeyPEM is the PEM-encoded RSA key of the token issuer.
	PublicKeyPEM string
	// Issuer, when set, must match the iss claim.
	Issuer string
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

// ErrNoKeyMaterial is returned when neither a secret nor a public key is configured.
var ErrNoKeyMaterial = errors.New("auth: JWT secret or public key required")

// Verifier checks bearer tokens against one key.
type Verifier struct {
	parser *jwt.Parser
	key    any
}

// NewVerifier builds a Verifier. An RSA public key takes precedence over the secret.
func NewVerifier(cfg JWTConfig) (*Verifier, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithLeeway(cfg.Leeway)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var key any
	switch {
	case cfg.PublicKeyPEM != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("auth: parse RSA public key: %w", err)
		}
		key = pub
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	case cfg.Secret != "":
		key = []byte(cfg.Secret)
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
	default:
		return nil, ErrNoKeyMaterial
	}

	return &Verifier{parser: jwt.NewParser(opts...), key: key}, nil
}

// Verify parses tokenString and returns its claims when signature, expiry
// and issuer check out.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(*jwt.Token) (any, error) {
	return v.key, nil
}

// UsesRSA reports whether tokens are checked against an RSA public key.
func (v *Verifier) UsesRSA() bool {
	_, ok := v.key.(*rsa.PublicKey)
	return ok
}

// LoadKeyFromFile reads a PEM-encoded key from a file path.
func LoadKeyFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read key file %q: %w", path, err)
	}
	return data, nil
}
