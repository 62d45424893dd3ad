package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
	RoleDriver     = "driver"
	RoleAdmin      = "admin"
)

var validRoles = map[string]bool{
	RoleCustomer:   true,
	RoleRestaurant: true,
	RoleDriver:     true,
	RoleAdmin:      true,
}

type contextKey string

const identityKey contextKey = "identity"

// Claims are the JWT claims issued for every role. RestaurantID is set for restaurant owners.
type Claims struct {
	Role         string `json:"role"`
	RestaurantID string `json:"rid,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID       string
	Role         string
	RestaurantID string
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewAuthenticator(secret, issuer string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// IssueToken signs an HS256 token; used by the issue-token mode and by tests.
func (a *Authenticator) IssueToken(userID, role, restaurantID string) (string, error) {
	if !validRoles[role] {
		return "", fmt.Errorf("unknown role: %q", role)
	}
	now := time.Now()
	claims := Claims{
		Role:         role,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns the caller identity.
func (a *Authenticator) Parse(tokenString string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.issuer))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}
	if claims.Subject == "" || !validRoles[claims.Role] {
		return Identity{}, fmt.Errorf("%w: incomplete claims", xerrors.ErrUnauthorized)
	}
	return Identity{
		UserID:       claims.Subject,
		Role:         claims.Role,
		RestaurantID: claims.RestaurantID,
	}, nil
}

// Authenticate attaches the caller identity when a bearer token is present.
// Requests without a token pass through anonymously; RequireRole rejects them later.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			JSONError(w, http.StatusUnauthorized, errors.New("authorization header must be a bearer token"))
			return
		}
		id, err := a.Parse(token)
		if err != nil {
			JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole allows only authenticated callers with one of the roles; no roles means any role.
func RequireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
			return
		}
		if len(roles) > 0 {
			allowed := false
			for _, role := range roles {
				if id.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				JSONError(w, http.StatusForbidden, xerrors.ErrForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
