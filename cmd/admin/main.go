package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"omilia/backend/internal/config"
	"omilia/backend/internal/models"
	"omilia/backend/internal/moderation"
	"omilia/backend/internal/rooms"
	"omilia/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	s := storage.NewStorageService(db, rdb, cfg.StoreTimeout, cfg.LockTTL)
	roomsSvc := rooms.NewService(s, cfg.MinRoomSize, cfg.MaxRoomSize)
	moderationSvc := moderation.NewService(s, roomsSvc)
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <ban|unban|list-complaints|delete-complaint> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		user := mustLookupUser(s, os.Args[2])
		var duration time.Duration
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
			duration = time.Duration(hours) * time.Hour
		}
		if err := moderationSvc.Block(ctx, user, duration); err != nil {
			log.Fatalf("Error banning user: %v", err)
		}
		fmt.Printf("User %s has been banned.\n", user.Username)

	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		user := mustLookupUser(s, os.Args[2])
		if err := moderationSvc.Unblock(ctx, user); err != nil {
			log.Fatalf("Error unbanning user: %v", err)
		}
		fmt.Printf("User %s has been unbanned.\n", user.Username)

	case "list-complaints":
		complaints, err := s.ListComplaints(ctx)
		if err != nil {
			log.Fatalf("Error listing complaints: %v", err)
		}
		if len(complaints) == 0 {
			fmt.Println("No complaints.")
			return
		}
		for _, c := range complaints {
			fmt.Printf("#%d reporter=%s target=%s reason=%q created=%s\n",
				c.ID, c.ReporterID, c.TargetUserID, c.Reason, c.CreatedAt)
		}

	case "delete-complaint":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin delete-complaint <complaint_id>")
			os.Exit(1)
		}
		id, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			fmt.Println("Invalid complaint ID. Please provide an integer.")
			os.Exit(1)
		}
		removed, err := s.RemoveComplaint(ctx, id)
		if err != nil {
			log.Fatalf("Error deleting complaint: %v", err)
		}
		if !removed {
			fmt.Printf("Complaint %d not found.\n", id)
			os.Exit(1)
		}
		fmt.Printf("Complaint %d has been deleted.\n", id)

	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func mustLookupUser(s storage.Storage, rawID string) *models.User {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		fmt.Println("Invalid user ID. Please provide an integer.")
		os.Exit(1)
	}
	user, err := s.UserByID(uint(id))
	if err != nil {
		log.Fatalf("Error looking up user %s: %v", rawID, err)
	}
	return user
}
