package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"imagefolders/utils"
)

// JWT authenticates the request from the session cookie or, for API
// clients, an "Authorization: Bearer" header.
func JWT(tokens *utils.TokenIssuer, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}
		if tokenString == "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Authentication required. No token provided.",
			})
			return
		}

		claims, userID, err := tokens.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid token",
			})
			return
		}

		utils.SetCurrentUser(c, userID, claims.Role)
		c.Next()
	}
}
