// cmd/seed/main.go
// Replaces every user in the configured store with synthetic ones.
//
// Usage:
//
//	go run ./cmd/seed -count 10000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/padraicbc/usertokenapi/config"
	bundb "github.com/padraicbc/usertokenapi/db"
)

func main() {
	count := flag.Int("count", -1, "number of users to create (required)")
	batch := flag.Int("batch", 0, "rows per transaction (default SEED_BATCH_SIZE)")
	flag.Parse()

	if *count < 0 {
		log.Fatal("-count must be set to a non-negative number")
	}

	cfg := config.Load()
	if cfg.ReadOnly {
		log.Fatal("store is configured read-only")
	}
	if *batch <= 0 {
		*batch = cfg.SeedBatchSize
	}

	db, err := bundb.Setup(cfg)
	if err != nil {
		log.Fatal("open store:", err)
	}
	defer db.Close()

	ctx := context.Background()
	err = bundb.InitSchema(ctx, db, bundb.InitOptions{
		MaxRetries:  cfg.InitMaxRetries,
		RetryDelay:  cfg.InitRetryDelay,
		CreateIndex: cfg.CreateIndex,
	})
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	n, err := bundb.SeedUsers(ctx, db, *count, *batch)
	if err != nil {
		log.Fatalf("seed (%d inserted): %v", n, err)
	}

	fmt.Printf("created %d users in %s\n", n, time.Since(start).Round(time.Millisecond))
}
