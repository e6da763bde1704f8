package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"greencity/internal/model"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	identityKey = "auth.identity"
	userKey     = "auth.user"
)

// ProfileLookup loads the stored profile for a verified uid.
type ProfileLookup interface {
	FindByID(ctx context.Context, uid string) (*model.User, error)
}

type Middleware struct {
	tokens   *TokenService
	profiles ProfileLookup
}

func NewMiddleware(tokens *TokenService, profiles ProfileLookup) *Middleware {
	return &Middleware{tokens: tokens, profiles: profiles}
}

// Require verifies the bearer token and, for role-gated permissions, loads
// the caller's profile and checks it against p.
func (m *Middleware) Require(p Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := m.tokens.Verify(bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(identityKey, identity)

		if !p.RoleGated() {
			c.Next()
			return
		}

		user, err := m.profiles.FindByID(c.Request.Context(), identity.UID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			log.WithError(err).WithField("uid", identity.UID).Error("auth: load profile")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if err := Authorize(user, p); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter for EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}

// IdentityFrom returns the identity stored by Require.
func IdentityFrom(c *gin.Context) *model.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*model.Identity)
	return identity
}

// UserFrom returns the profile loaded for role-gated routes.
func UserFrom(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
