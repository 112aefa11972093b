package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"live-fixture-service/database"
	"live-fixture-service/models"
)

// seedFile 初始数据: 比赛与球员名单
type seedFile struct {
	Fixtures []models.Fixture `json:"fixtures"`
	Players  []models.Player  `json:"players"`
}

func main() {
	seedPath := flag.String("seed", "", "JSON file with fixtures and players to load after migrating")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}
	dialect, err := database.ParseDialect(os.Getenv("DATABASE_DRIVER"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	db, err := database.Connect(dialect, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database (%s)", dialect)

	if err := database.Migrate(db, dialect); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Schema is up to date")

	if *seedPath == "" {
		return
	}

	raw, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}

	ctx := context.Background()
	store := database.NewSQLStore(db, dialect)
	for i := range seed.Fixtures {
		f := &seed.Fixtures[i]
		if err := store.CreateFixture(ctx, f); err != nil {
			log.Fatalf("❌ Failed to create fixture %s: %v", f.ID, err)
		}
	}
	for _, p := range seed.Players {
		if err := store.UpsertPlayer(ctx, p); err != nil {
			log.Fatalf("❌ Failed to upsert player %s: %v", p.ID, err)
		}
	}
	log.Printf("✅ Seeded %d fixtures and %d players", len(seed.Fixtures), len(seed.Players))
}
