//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestDemoDB_Connection(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	// Verify we can query the seeded demo schema
	var tableCount int
	err := testDB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public'").
		Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}

	if tableCount != 2 {
		t.Errorf("expected 2 tables in demo schema, got %d", tableCount)
	}
}

func TestDemoDB_TableData(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"customers", 4},
		{"orders", 4},
	}

	for _, tt := range tests {
		var count int
		err := testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count)
		if err != nil {
			t.Errorf("failed to count %s: %v", tt.table, err)
			continue
		}
		if count != tt.expected {
			t.Errorf("%s: expected %d rows, got %d", tt.table, tt.expected, count)
		}
	}
}

func TestEngineDB_MigrationsApplied(t *testing.T) {
	engineDB := GetEngineDB(t)

	ctx := context.Background()

	var exists bool
	err := engineDB.DB.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'engine_discovery_runs'
		)`).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check migrations: %v", err)
	}
	if !exists {
		t.Error("expected engine_discovery_runs table after migrations")
	}
}
