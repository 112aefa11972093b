package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"live-fixture-service/config"
	"live-fixture-service/web"
)

func main() {
	sub := flag.String("sub", "", "Operator identifier")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	if *sub == "" {
		log.Fatal("❌ Operator is required. Use -sub=<operator>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET environment variable is required")
	}

	token, err := web.NewAuthenticator(cfg.JWTSecret, cfg.OperatorRole).IssueToken(*sub, cfg.OperatorRole, *ttl)
	if err != nil {
		log.Fatalf("❌ Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
