// Package auth verifies caller credentials and decides who may start games.
//
// A credential is either a `Authorization: Bearer <token>` header or a
// `__session` cookie; both carry the same signed ID token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie clients without an Authorization header use.
const SessionCookie = "__session"

var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is a verified caller.
type Identity struct {
	// UID is the stable identifier of the caller.
	UID string
	// Name is the caller's display name.
	Name string
}

// Verifier validates a raw credential and yields the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Policy decides whether an identity may start a new game.
type Policy interface {
	CanStartGame(id Identity) bool
}

// AllowList is a Policy admitting only the listed UIDs.
type AllowList []string

func (l AllowList) CanStartGame(id Identity) bool {
	return slices.Contains(l, id.UID)
}

// Claims is the ID token payload.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256-signed ID tokens.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UID:  claims.Subject,
		Name: claims.Name,
	}, nil
}

const identityKey = "auth.identity"

// Middleware rejects requests without a verifiable credential before any
// business logic runs. On success the identity is stored on the request
// context for IdentityFrom.
func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			c.String(http.StatusForbidden, "Unauthorized")
			c.Abort()
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.String(http.StatusForbidden, "Unauthorized")
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity the middleware verified.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}

	id, ok := v.(Identity)
	return id, ok
}

// ExtractToken pulls the raw credential from the Authorization header,
// falling back to the session cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}

	if ck, err := r.Cookie(SessionCookie); err == nil {
		return ck.Value
	}

	return ""
}
