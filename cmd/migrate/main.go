// cmd/migrate/main.go
// Copies users from another store into the configured one. Mails that already
// exist in the target are left alone; the target assigns new ids.
//
// Usage:
//
//	MIGRATE_SOURCE_DRIVER=mysql \
//	MIGRATE_SOURCE_DSN="user:pass@tcp(host:3306)/users" \
//	go run ./cmd/migrate
package main

import (
	"context"
	"log"
	"time"

	"github.com/padraicbc/usertokenapi/config"
	bundb "github.com/padraicbc/usertokenapi/db"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	if cfg.ReadOnly {
		log.Fatal("target store is configured read-only")
	}

	// --- source ---
	if cfg.MigrateSourceDriver == "" || cfg.MigrateSourceDSN == "" {
		log.Fatal("MIGRATE_SOURCE_DRIVER and MIGRATE_SOURCE_DSN are required")
	}
	src, err := bundb.Open(cfg.MigrateSourceDriver, cfg.MigrateSourceDSN, bundb.Options{
		ReadOnly:    true,
		BusyTimeout: cfg.BusyTimeout,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Fatalf("open source: %v", err)
	}
	defer src.Close()
	src.SetMaxOpenConns(4)
	if err := src.PingContext(ctx); err != nil {
		log.Fatalf("ping source: %v", err)
	}
	log.Printf("connected to source (%s)", cfg.MigrateSourceDriver)

	// --- target ---
	dst, err := bundb.Setup(cfg)
	if err != nil {
		log.Fatalf("open target: %v", err)
	}
	defer dst.Close()

	err = bundb.InitSchema(ctx, dst, bundb.InitOptions{
		MaxRetries:  cfg.InitMaxRetries,
		RetryDelay:  cfg.InitRetryDelay,
		CreateIndex: cfg.CreateIndex,
	})
	if err != nil {
		log.Fatalf("init target: %v", err)
	}
	log.Printf("connected to target (%s)", cfg.DBDriver)

	start := time.Now()
	n, err := bundb.CopyUsers(ctx, src, dst, cfg.SeedBatchSize)
	if err != nil {
		log.Fatalf("migrate users (%d copied): %v", n, err)
	}

	total, err := bundb.CountUsers(ctx, dst)
	if err != nil {
		log.Fatalf("count target: %v", err)
	}
	log.Printf("%-15s  %d rows read, %d in target, %s", "users", n, total, time.Since(start).Round(time.Millisecond))
	log.Println("migration complete")
}
