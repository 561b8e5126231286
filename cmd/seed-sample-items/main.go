package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/reusehub/swapit-backend/internal/config"
	"github.com/reusehub/swapit-backend/internal/db"
	"github.com/reusehub/swapit-backend/internal/model"
	"github.com/reusehub/swapit-backend/internal/repository"
)

// The built-in demo listings shown to users before anyone has posted real
// items. They have no owner, so chat and deletion are disabled on them.
var sampleItems = []model.Item{
	{
		Title:    "Winter Jacket - Size M",
		Category: "clothing",
		Location: "Rajiv Bhawan",
		PhotoURL: ptr("https://storage.googleapis.com/swapit-samples/winter-jacket.jpg"),
		Sample:   true,
	},
	{
		Title:    "Engineering Books",
		Category: "books",
		Location: "Library",
		PhotoURL: ptr("https://storage.googleapis.com/swapit-samples/engineering-books.jpg"),
		Sample:   true,
	},
	{
		Title:    "Study Lamp",
		Category: "stationery",
		Location: "Himalaya Bhawan",
		PhotoURL: ptr("https://storage.googleapis.com/swapit-samples/study-lamp.jpg"),
		Sample:   true,
	},
	{
		Title:    "Laptop Bag",
		Category: "electronics",
		Location: "Main Campus",
		PhotoURL: ptr("https://storage.googleapis.com/swapit-samples/laptop-bag.jpg"),
		Sample:   true,
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := gdb.AutoMigrate(&model.Item{}, &model.Message{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	itemRepo := repository.NewItemRepository(gdb)

	inserted, skipped := 0, 0
	for i := range sampleItems {
		item := sampleItems[i]

		exists, err := itemRepo.FindSampleByTitle(ctx, item.Title)
		if err != nil {
			return fmt.Errorf("check existing %q: %w", item.Title, err)
		}
		if exists != nil {
			skipped++
			continue
		}

		if err := itemRepo.Create(ctx, &item); err != nil {
			return fmt.Errorf("insert %q: %w", item.Title, err)
		}
		inserted++
	}

	log.Printf("seed complete: inserted=%d skipped=%d total=%d", inserted, skipped, len(sampleItems))
	return nil
}

func ptr(s string) *string {
	return &s
}
