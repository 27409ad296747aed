package route

import (
	"github.com/gin-gonic/gin"

	"imagefolders/controller"
)

func Protected(router *gin.Engine, auth gin.HandlerFunc, users *controller.UserController,
	folders *controller.FolderController, images *controller.ImageController) {

	user := router.Group("/api/user", auth)
	user.POST("/logout", users.Logout)
	user.GET("/profile", users.Profile)

	folder := router.Group("/api/folder", auth)
	folder.POST("", folders.CreateFolder)
	folder.GET("", folders.GetFolders)
	folder.GET("/tree/all", folders.GetFolderTree)
	folder.GET("/:id", folders.GetFolder)
	folder.PUT("/:id", folders.UpdateFolder)
	folder.DELETE("/:id", folders.DeleteFolder)
	folder.GET("/:id/children", folders.GetFolderChildren)

	image := router.Group("/api/images", auth)
	image.POST("/upload", images.UploadImage)
	image.GET("", images.GetUserImages)
	image.GET("/search", images.SearchImages)
	image.GET("/download/:id", images.DownloadImage)
	image.GET("/thumbnail/:id", images.GetThumbnail)
	image.DELETE("/:id", images.DeleteImage)
}
