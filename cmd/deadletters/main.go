package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// deadletters prints the most recent order_dead_letters rows as JSON lines so an
// operator can replay the orders by hand.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "deadletters", Output: os.Stderr})

	_ = godotenv.Load()

	limit := flag.Int("limit", 50, "maximum number of dead letters to print")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	entries, err := orders.NewRepository(dbClient.DB()).ListDeadLetters(ctx, *limit)
	requireResource(ctx, logg, "dead letters", err)

	enc := json.NewEncoder(os.Stdout)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			requireResource(ctx, logg, "stdout", err)
		}
	}
	logg.Info(logg.WithField(ctx, "count", len(entries)), "dead letters listed")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
