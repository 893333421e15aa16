// cmd/admintoken/main.go
// Prints an admin token accepted by the seeding routes.
//
// Usage:
//
//	ADMIN_TOKEN_SECRET=... go run ./cmd/admintoken -sub ops -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/padraicbc/usertokenapi/config"
	mw "github.com/padraicbc/usertokenapi/middleware"
)

func main() {
	sub := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	key := cfg.AdminKey()
	if key == nil {
		log.Fatal("ADMIN_TOKEN_SECRET must be set")
	}

	tok, err := mw.NewAdminToken(key, *sub, *ttl)
	if err != nil {
		log.Fatal("sign:", err)
	}
	fmt.Println(tok)
}
