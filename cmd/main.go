package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"omilia/backend/internal/api/handler"
	"omilia/backend/internal/auth"
	"omilia/backend/internal/chathub"
	"omilia/backend/internal/complaint"
	"omilia/backend/internal/config"
	"omilia/backend/internal/models"
	"omilia/backend/internal/moderation"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"
	"omilia/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Omilia Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb, cfg.StoreTimeout, cfg.LockTTL)

	roomsSvc := rooms.NewService(s, cfg.MinRoomSize, cfg.MaxRoomSize)
	authSvc := auth.NewService(s, cfg.JWTSecret)
	complaintSvc := complaint.NewService(s)
	moderationSvc := moderation.NewService(s, roomsSvc)

	hub := chathub.NewHub(s, roomsSvc)
	roomsSvc.SetPresenceNotifier(hub)
	go hub.Run()

	if cfg.TelegramBotToken != "" {
		notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChat, s, moderationSvc)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		complaintSvc.SetNotifier(notifier)
		go notifier.Run()
	}

	r := gin.Default()
	h := handler.NewHandler(authSvc, roomsSvc, complaintSvc, s, hub)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
