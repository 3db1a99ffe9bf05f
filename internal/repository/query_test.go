package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds statements against the postgres dialect without a server.
func dryRunDB(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry run db: %v", err)
	}
	var statements []string
	if err := db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}); err != nil {
		t.Fatalf("register capture: %v", err)
	}
	return db, &statements
}

func TestGetByIDsSkipsInactiveUsers(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.GetByIDs(context.Background(), []uuid.UUID{uuid.New(), uuid.New()}); err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(*statements) != 1 {
		t.Fatalf("expected one query, got %v", *statements)
	}
	if sql := (*statements)[0]; !strings.Contains(sql, "is_active") {
		t.Fatalf("GetByIDs must filter inactive users: %s", sql)
	}
}

func TestGetLatestByPairOrdersByActivity(t *testing.T) {
	db, statements := dryRunDB(t)
	repo := NewMatchRepository(db)

	if _, err := repo.GetLatestByPair(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("GetLatestByPair: %v", err)
	}
	if len(*statements) != 1 {
		t.Fatalf("expected one query, got %v", *statements)
	}
	sql := (*statements)[0]
	if !strings.Contains(sql, "ORDER BY last_activity DESC, id DESC") || strings.Contains(sql, "status") {
		t.Fatalf("unexpected latest match query: %s", sql)
	}
}
