package utils

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ContextKey string

const (
	UserIDKey ContextKey = "userID"
	RoleKey   ContextKey = "role"
)

// SetCurrentUser records the authenticated caller on the request context.
func SetCurrentUser(c *gin.Context, userID bson.ObjectID, role string) {
	c.Set(string(UserIDKey), userID)
	c.Set(string(RoleKey), role)
}

// CurrentUser returns the caller recorded by the auth middleware.
func CurrentUser(c *gin.Context) (bson.ObjectID, bool) {
	v, exists := c.Get(string(UserIDKey))
	if !exists {
		return bson.NilObjectID, false
	}
	id, ok := v.(bson.ObjectID)
	return id, ok && !id.IsZero()
}

// CurrentRole returns the caller's role, or "" when unauthenticated.
func CurrentRole(c *gin.Context) string {
	return c.GetString(string(RoleKey))
}
