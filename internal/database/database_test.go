package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestConnect_BadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	if err == nil || !strings.Contains(err.Error(), "parse database DSN") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestConnect_GivesUpWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	// port 1 refuses connections
	_, err := Connect(ctx, "postgres://impostor@127.0.0.1:1/impostor?connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for unreachable database")
	}
	if time.Since(start) > startupWait {
		t.Errorf("Connect ignored context deadline, took %v", time.Since(start))
	}
}

func TestMigrate(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is required for migration tests")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// second run is a no-op
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	v, err := MigrationVersion(ctx, pool)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v < 3 {
		t.Errorf("expected version >= 3, got %d", v)
	}
}
