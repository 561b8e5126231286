package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/reusehub/swapit-backend/internal/config"
	"github.com/reusehub/swapit-backend/internal/db"
	"github.com/reusehub/swapit-backend/internal/model"
	"github.com/reusehub/swapit-backend/internal/realtime"
	"github.com/reusehub/swapit-backend/internal/server"
	"github.com/reusehub/swapit-backend/internal/storage"
)

var (
	gitSHA    = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	hub := realtime.NewHub()
	srv := server.New(nil, hub, gitSHA, buildTime)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	errCh := make(chan error, 1)

	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	// The listener comes up immediately; database, storage and the Redis
	// bridge attach in the background once their clients are ready.
	go func() {
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			log.Printf("config load error: %v", err)
			return
		}

		conn, err := db.Connect(cfg)
		if err != nil {
			log.Printf("db connect error: %v", err)
			return
		}
		srv.SetDB(conn)
		if err := conn.AutoMigrate(&model.Item{}, &model.Message{}); err != nil {
			log.Printf("auto migrate error: %v", err)
		}

		if cfg.RedisURL != "" {
			if err := hub.AttachRedis(ctx, cfg.RedisURL); err != nil {
				log.Printf("redis bridge error: %v", err)
			}
		}

		if cfg.StorageBucket != "" {
			uploader, err := storage.NewUploader(ctx, cfg.StorageBucket)
			if err != nil {
				log.Printf("storage init error: %v", err)
			} else {
				srv.SetUploader(uploader)
			}
		}
	}()

	if err := <-errCh; err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
