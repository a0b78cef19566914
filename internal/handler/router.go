package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"share-service/internal/handler/authHandler"
	"share-service/internal/handler/fileHandler"
	"share-service/internal/handler/shareHandler"
	"share-service/pkg/middleware"
)

// NewRouter assembles the HTTP edge. Everything below /api except
// register/login requires a resolved actor.
func NewRouter(
	auth *authHandler.AuthHandler,
	files *fileHandler.FileHandler,
	shares *shareHandler.ShareHandler,
	resolver middleware.ActorResolver,
) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	api := r.Group("/api")
	api.POST("/register", auth.Register)
	api.POST("/login", auth.Login)

	authorized := api.Group("/")
	authorized.Use(middleware.RequireAuth(resolver))
	{
		authorized.POST("/files", files.Upload)
		authorized.GET("/files", files.List)
		authorized.GET("/files/shared-with-me", files.ListShared)
		authorized.GET("/files/:id", files.Get)
		authorized.GET("/files/:id/download", files.Download)
		authorized.DELETE("/files/:id", files.Delete)

		authorized.POST("/shares/user", shares.ShareWithUser)
		authorized.POST("/shares/link", shares.GenerateLink)
		authorized.GET("/shares", shares.ListMyGrants)
		authorized.DELETE("/shares/:id", shares.Revoke)

		authorized.GET("/shared/:token", shares.Redeem)
		authorized.GET("/shared/:token/download", shares.RedeemDownload)

		authorized.GET("/audit", files.Activity)
	}

	return r
}
