package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tutor-match/config"
	"tutor-match/internal/repository"
	"tutor-match/internal/services"
	"tutor-match/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Tutor Match - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create enums, tables, indexes and triggers
  status      Show database connection status and table sizes
  seed-dev    Seed demo students and tutors and print dev tokens
  truncate    Truncate all tables (DANGEROUS)

Flags:
  -students int   Students to seed (default 3)
  -tutors int     Tutors to seed (default 3)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev -students 5
`

func main() {
	students := flag.Int("students", 3, "Students to seed")
	tutors := flag.Int("tutors", 3, "Tutors to seed")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db, cfg, &database.SeedConfig{StudentCount: *students, TutorCount: *tutors})
	case "truncate":
		runTruncate(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(context.Background(), db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range repository.Tables() {
		if !database.TableExists(db, table) {
			log.Printf("❌ Table %-20s does not exist", table)
			continue
		}
		count, err := database.TableCount(db, table)
		if err != nil {
			log.Printf("⚠️  Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("✅ Table %-20s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB, cfg *config.Config, seedCfg *database.SeedConfig) {
	log.Println("🌱 Seeding database (development mode)...")

	result, err := database.SeedDevelopment(db, seedCfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Students: %d", len(result.Students))
	log.Printf("   - Tutors: %d", len(result.Tutors))
	log.Printf("   - Matches: %d", len(result.Matches))
	log.Printf("   - Messages: %d", len(result.Messages))

	auth := services.NewAuthService(cfg)
	log.Println("🔑 Dev tokens:")
	for _, u := range append(result.Students, result.Tutors...) {
		token, _, err := auth.SignAccessToken(u.ID, string(u.Role))
		if err != nil {
			log.Fatalf("❌ Token signing failed: %v", err)
		}
		log.Printf("   - %-10s %s %s", u.DisplayName, u.ID, token)
	}
	log.Println("✅ Development seeding completed!")
}

func runTruncate(db *gorm.DB) {
	log.Println("⚠️  WARNING: This will TRUNCATE all tables!")

	if err := database.TruncateAll(db, repository.Tables()); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
