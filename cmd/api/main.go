package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/config"
	"github.com/lumenchat/lumen-go-api/internal/database"
	"github.com/lumenchat/lumen-go-api/internal/handler"
	"github.com/lumenchat/lumen-go-api/internal/middleware"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/repository"
	"github.com/lumenchat/lumen-go-api/internal/router"
	"github.com/lumenchat/lumen-go-api/internal/service"
	cloud "github.com/lumenchat/lumen-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.DirectMessage{}, &models.Group{}, &models.GroupMessage{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, avatar uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	directRepo := repository.NewDirectMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMsgRepo := repository.NewGroupMessageRepository(db)

	unreadCache := service.NewUnreadCache(redisClient, cfg.ChannelBase, cfg.UnreadCacheTTL, logger)
	encoder := service.NewAttachmentEncoder(logger)

	chatService := service.NewChatService(directRepo, groupRepo, groupMsgRepo, encoder, unreadCache, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	groupService := service.NewGroupService(groupRepo, groupMsgRepo, encoder, chatService, validate, logger)
	rosterService := service.NewRosterService(userRepo, directRepo, groupRepo, unreadCache, logger)
	userService := service.NewUserService(userRepo, storage, validate, logger)
	adminService := service.NewAdminService(userRepo, directRepo, groupMsgRepo, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chatService.Start(runCtx)

	chatHandler := handler.NewChatHandler(chatService, validate, logger)
	groupHandler := handler.NewGroupHandler(groupService, chatService, validate, logger)
	rosterHandler := handler.NewRosterHandler(rosterService, validate, logger)
	userHandler := handler.NewUserHandler(userService, validate, logger)
	adminHandler := handler.NewAdminHandler(adminService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    8 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:   chatHandler,
		GroupHandler:  groupHandler,
		RosterHandler: rosterHandler,
		UserHandler:   userHandler,
		AdminHandler:  adminHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, timeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
