package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	adapter "github.com/gwatts/gin-adapter"
)

type Role string

const (
	RoleRider    Role = "rider"
	RoleOperator Role = "operator"
	RoleDual     Role = "dual"
)

func (r Role) valid() bool {
	switch r {
	case RoleRider, RoleOperator, RoleDual:
		return true
	}
	return false
}

// Claims carries the namespaced role claim an Auth0 action adds to access
// tokens.
type Claims struct {
	Role Role `json:"https://bms.example.com/role"`
}

func (c *Claims) Validate(context.Context) error {
	if c.Role == "" {
		return nil
	}
	if !c.Role.valid() {
		return fmt.Errorf("invalid role %q", c.Role)
	}
	return nil
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   Role
}

const identityKey = "identity"

// JWT validates RS256 bearer tokens issued by the Auth0 tenant at domain and
// stores the caller's Identity. Tokens without a role claim act as riders.
// The adapter runs the rest of the chain from inside CheckJWT, so the
// identity is read by a second handler that sees the validated request.
func JWT(domain, audience string) (gin.HandlersChain, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("parse issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	v, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &Claims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("set up jwt validator: %w", err)
	}

	m := jwtmiddleware.New(v.ValidateToken, jwtmiddleware.WithErrorHandler(
		func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Default().DebugContext(r.Context(), "rejected token", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"Authentication required"}`))
		},
	))

	return gin.HandlersChain{adapter.Wrap(m.CheckJWT), claimsIdentity}, nil
}

func claimsIdentity(c *gin.Context) {
	id, ok := identityFromClaims(c.Request.Context())
	if !ok {
		abortUnauthorized(c)
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func identityFromClaims(ctx context.Context) (Identity, bool) {
	claims, ok := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok || claims.RegisteredClaims.Subject == "" {
		return Identity{}, false
	}
	id := Identity{UserID: claims.RegisteredClaims.Subject, Role: RoleRider}
	if custom, ok := claims.CustomClaims.(*Claims); ok && custom.Role != "" {
		id.Role = custom.Role
	}
	return id, true
}

// HeaderIdentity trusts X-User-ID and X-User-Role. It is only mounted in
// development mode and in tests.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			abortUnauthorized(c)
			return
		}
		role := Role(c.GetHeader("X-User-Role"))
		if role == "" {
			role = RoleRider
		}
		if !role.valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "INVALID_ROLE", "message": "unknown role " + string(role)})
			return
		}
		c.Set(identityKey, Identity{UserID: userID, Role: role})
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// GetUserID returns the subject of the authenticated caller.
func GetUserID(c *gin.Context) (string, bool) {
	id, ok := GetIdentity(c)
	return id.UserID, ok
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if !slices.Contains(roles, id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "role " + string(id.Role) + " may not do this"})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
}
