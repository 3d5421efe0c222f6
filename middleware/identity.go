package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
)

type contextKey string

const identityContextKey = contextKey("identity")

// Identity extracts the caller's identity and stores it in the request
// context. Authentication itself is external: with AUTH_JWT_SECRET set,
// an HS256 bearer token issued by the identity provider is validated and
// its sub/email/name claims are used; without it the X-User-ID and
// X-User-Email headers are trusted, matching the reference system's
// unauthenticated operation. Requests without any identity pass through
// anonymous; handlers that need an identity enforce that themselves.
func Identity(next http.Handler) http.Handler {
	secret := os.Getenv("AUTH_JWT_SECRET")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var identity core.Identity

		if secret != "" {
			if token := bearerToken(r); token != "" {
				parsed, err := parseJWT(token, secret)
				if err != nil {
					logrus.WithError(err).Debug("rejecting invalid bearer token")
				} else {
					identity = parsed
				}
			}
		} else {
			identity = core.Identity{
				UserID: r.Header.Get("X-User-ID"),
				Email:  r.Header.Get("X-User-Email"),
				Name:   r.Header.Get("X-User-Name"),
			}
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity attached to the request, if any.
func IdentityFrom(ctx context.Context) (core.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(core.Identity)
	if !ok || identity.UserID == "" {
		return core.Identity{}, false
	}
	return identity, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func parseJWT(tokenString, secret string) (core.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return core.Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return core.Identity{}, fmt.Errorf("invalid token claims")
	}

	identity := core.Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if identity.UserID == "" {
		return core.Identity{}, fmt.Errorf("token missing sub claim")
	}
	return identity, nil
}
