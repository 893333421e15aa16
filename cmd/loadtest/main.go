// cmd/loadtest/main.go
// Fires verify requests for seeded users at a running server and prints
// latency statistics.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8082 -n 10000 -c 64 -users 10000
//	go run ./cmd/loadtest -hash password42
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	bundb "github.com/padraicbc/usertokenapi/db"
)

func main() {
	base := flag.String("url", "http://localhost:8082", "server base URL")
	requests := flag.Int("n", 1000, "total requests")
	concurrency := flag.Int("c", 32, "concurrent workers")
	users := flag.Int("users", 10000, "number of seeded users to draw credentials from")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	hash := flag.String("hash", "", "print the SHA-256 hash of this password and exit")
	flag.Parse()

	if *hash != "" {
		fmt.Printf("Password: %s\nHash:     %s\n", *hash, bundb.HashPassword(*hash))
		return
	}

	client := &http.Client{Timeout: *timeout}
	stats, err := run(client, Options{
		BaseURL:     *base,
		Requests:    *requests,
		Concurrency: *concurrency,
		Users:       *users,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(stats)
}
