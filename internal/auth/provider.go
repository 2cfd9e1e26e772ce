package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// DemoUserID is the shared id used when no account is signed in.
const DemoUserID = "demo_user"

var (
	// ErrNoToken means the request carried no bearer token.
	ErrNoToken = errors.New("no bearer token")

	// ErrInvalidToken means the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the account a request acts on behalf of.
type Identity struct {
	UserID        string
	Email         string
	Authenticated bool
}

// Demo returns the anonymous identity.
func Demo() Identity {
	return Identity{UserID: DemoUserID}
}

// IsDemo reports whether the identity is the shared demo account.
func (i Identity) IsDemo() bool {
	return !i.Authenticated || i.UserID == DemoUserID
}

// Provider resolves the identity of an incoming request. Implementations
// always return a usable identity; the error explains why it is the demo one.
type Provider interface {
	Identify(r *http.Request) (Identity, error)
}

// DemoProvider treats every request as the demo account.
type DemoProvider struct{}

// Identify implements Provider.
func (DemoProvider) Identify(*http.Request) (Identity, error) {
	return Demo(), nil
}

// JWTProvider verifies HS256 access tokens issued by the hosted account
// service. The subject claim is the user id.
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider creates a provider that verifies tokens with the shared secret.
func NewJWTProvider(secret string) (*JWTProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTProvider{secret: []byte(secret)}, nil
}

// Identify implements Provider.
func (p *JWTProvider) Identify(r *http.Request) (Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Demo(), ErrNoToken
	}

	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), p.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return Demo(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return Demo(), fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	id := Identity{UserID: subject, Authenticated: true}
	var email string
	if err := token.Get("email", &email); err == nil {
		id.Email = email
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
