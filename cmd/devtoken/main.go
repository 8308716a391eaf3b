package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/auth"
)

// Prints a bearer token signed with the configured JWT secret, for local
// development without the identity provider.
func main() {
	email := flag.String("email", "", "principal email (also used as the subject)")
	admin := flag.Bool("admin", false, "grant the admin claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		log.Fatal("Usage: go run ./cmd/devtoken -email ada@example.com [-admin] [-ttl 24h]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to mint tokens in production")
	}

	token, err := auth.NewJWTManager(cfg.JWT).GenerateAccessToken(*email, *email, *admin, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
}
