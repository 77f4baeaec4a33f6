package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/model"
)

// Identity headers set by the authentication collaborator in front of this
// service. The subsystem trusts them; credential verification is out of scope.
const (
	HeaderIdentityID   = "X-Identity-ID"
	HeaderIdentityRole = "X-Identity-Role"

	ContextIdentity = "identity"
)

// Identity extracts the authenticated caller from the trusted headers and
// rejects calls that arrive without one.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(HeaderIdentityID))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing or malformed identity"))
			return
		}

		role := model.Role(c.GetHeader(HeaderIdentityRole))
		if !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing or malformed identity role"))
			return
		}

		c.Set(ContextIdentity, model.Identity{ID: id, Role: role})
		c.Next()
	}
}

// IdentityFrom returns the caller identity stored by the Identity middleware.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	value, exists := c.Get(ContextIdentity)
	if !exists {
		return model.Identity{}, false
	}
	identity, ok := value.(model.Identity)
	return identity, ok
}

// RequireRole limits a route to the given roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("role not permitted"))
	}
}
