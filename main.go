package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"imagefolders/config"
	"imagefolders/controller"
	"imagefolders/database"
	"imagefolders/middlewares"
	"imagefolders/route"
	"imagefolders/service"
	"imagefolders/storage"
	"imagefolders/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("server starting", "environment", cfg.Environment, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB: ", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			logger.Error("mongo disconnect", "error", err)
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create indexes: ", err)
	}

	objects, err := storage.NewS3(ctx, storage.S3Config{
		Region:        cfg.AWSRegion,
		Bucket:        cfg.BucketName,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
		PathStyle:     cfg.S3PathStyle,
		Marker:        cfg.StoragePathMarker,
		PresignTTL:    cfg.PresignTTL,
	})
	if err != nil {
		log.Fatal("Failed to initialise object storage: ", err)
	}
	fetcher := storage.NewHTTPFetcher(30 * time.Second)

	folderStore := database.NewFolderStore(db)
	imageStore := database.NewImageStore(db)
	userStore := database.NewUserStore(db)
	tx := database.NewTxManager(db, cfg.MongoTransactions)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)

	deleteMode, err := service.ParseDeleteMode(cfg.FolderDeleteMode)
	if err != nil {
		log.Fatal(err)
	}
	folderService := service.NewFolderService(folderStore, imageStore, userStore, tx, objects, deleteMode, logger)
	imageService := service.NewImageService(imageStore, folderStore, tx, objects, fetcher, cfg.MaxUploadBytes, logger)
	userService := service.NewUserService(userStore, tokens, logger)

	folderController := controller.NewFolderController(folderService, logger)
	imageController := controller.NewImageController(imageService, cfg.UploadTmpDir, cfg.MaxUploadBytes, logger)
	userController := controller.NewUserController(userService, cfg.CookieSecure, logger)
	healthController := controller.NewHealthController(db)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization", "Accept", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, 10*time.Minute)
	go limiter.Run(ctx, time.Minute)

	auth := middlewares.JWT(tokens, controller.SessionCookie)
	route.Protected(router, auth, userController, folderController, imageController)
	route.Unprotected(router, limiter.Middleware(), userController, healthController)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
