package route

import (
	"github.com/gin-gonic/gin"

	"imagefolders/controller"
)

func Unprotected(router *gin.Engine, limiter gin.HandlerFunc, users *controller.UserController, health *controller.HealthController) {
	router.GET("/", health.Root)
	router.GET("/healthz", health.Healthz)

	user := router.Group("/api/user", limiter)
	user.POST("/register", users.RegisterUser)
	user.POST("/login", users.Login)
}
