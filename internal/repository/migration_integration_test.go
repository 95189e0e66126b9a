//go:build integration

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tokentill/tokentill/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	// Verify all expected tables exist
	tables := []string{
		"accounts",
		"transfers",
		"users",
		"api_keys",
		"transfer_events",
		"daily_account_stats",
		"webhook_endpoints",
		"webhook_deliveries",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_AccountsTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	// Verify accounts table has expected columns
	expectedColumns := []string{
		"id",
		"address",
		"authority",
		"name",
		"age",
		"balance",
		"active",
		"deactivated_at",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "accounts", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in accounts table", col)
			}
		})
	}
}

func TestIntegrationMigration_AccountsConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	validAddress := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	// Verify address length check constraint
	_, err := pool.Exec(ctx, `
		INSERT INTO accounts (id, address, authority, name, age)
		VALUES ('test-id', 'too-short', 'test-auth', 'Alice', 30)
	`)
	if err == nil {
		t.Error("Expected check constraint violation for short address")
	}

	// Verify age check constraint
	_, err = pool.Exec(ctx, `
		INSERT INTO accounts (id, address, authority, name, age)
		VALUES ('test-id', $1, 'test-auth', 'Alice', 0)
	`, validAddress)
	if err == nil {
		t.Error("Expected check constraint violation for zero age")
	}

	// Verify name length check constraint
	_, err = pool.Exec(ctx, `
		INSERT INTO accounts (id, address, authority, name, age)
		VALUES ('test-id', $1, 'test-auth', 'this name is much longer than thirty-two characters', 30)
	`, validAddress)
	if err == nil {
		t.Error("Expected check constraint violation for name > 32 chars")
	}

	// Verify balance cannot go negative
	_, err = pool.Exec(ctx, `
		INSERT INTO accounts (id, address, authority, name, age, balance)
		VALUES ('test-id', $1, 'test-auth', 'Alice', 30, -1)
	`, validAddress)
	if err == nil {
		t.Error("Expected check constraint violation for negative balance")
	}
}

func TestIntegrationMigration_TransfersConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	validAddress := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	// Amount must be positive
	_, err := pool.Exec(ctx, `
		INSERT INTO transfers (id, from_address, to_address, authority, amount, fee)
		VALUES ('test-tr', NULL, $1, 'system', 0, 0)
	`, validAddress)
	if err == nil {
		t.Error("Expected check constraint violation for zero amount")
	}

	// Fee cannot go negative
	_, err = pool.Exec(ctx, `
		INSERT INTO transfers (id, from_address, to_address, authority, amount, fee)
		VALUES ('test-tr', NULL, $1, 'system', 100, -1)
	`, validAddress)
	if err == nil {
		t.Error("Expected check constraint violation for negative fee")
	}
}

func TestIntegrationMigration_APIKeysTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"user_id",
		"key_hash",
		"key_prefix",
		"scopes",
		"rate_limit_tier",
		"name",
		"revoked_at",
		"last_used_at",
		"created_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "api_keys", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in api_keys table", col)
			}
		})
	}
}

func TestIntegrationMigration_ActivityTablesSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	// transfer_events columns
	eventCols := []string{
		"id",
		"event_id",
		"transfer_id",
		"from_address",
		"to_address",
		"amount",
		"fee",
		"occurred_at",
		"created_at",
	}

	for _, col := range eventCols {
		exists, err := columnExists(ctx, pool, "transfer_events", col)
		if err != nil {
			t.Fatalf("columnExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Column %q should exist in transfer_events table", col)
		}
	}

	// daily_account_stats columns
	statsColumns := []string{
		"id",
		"address",
		"date",
		"sent_count",
		"received_count",
		"sent_volume",
		"received_volume",
	}

	for _, col := range statsColumns {
		exists, err := columnExists(ctx, pool, "daily_account_stats", col)
		if err != nil {
			t.Fatalf("columnExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Column %q should exist in daily_account_stats table", col)
		}
	}
}

func TestIntegrationMigration_WebhookTablesSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	// webhook_endpoints columns
	endpointCols := []string{
		"id",
		"user_id",
		"target_url",
		"secret_hash",
		"enabled",
		"event_types",
		"name",
		"description",
		"created_at",
		"updated_at",
		"deleted_at",
	}

	for _, col := range endpointCols {
		exists, err := columnExists(ctx, pool, "webhook_endpoints", col)
		if err != nil {
			t.Fatalf("columnExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Column %q should exist in webhook_endpoints table", col)
		}
	}

	// webhook_deliveries columns
	deliveryCols := []string{
		"id",
		"endpoint_id",
		"event_id",
		"event_type",
		"payload_json",
		"status",
		"attempt_count",
		"max_attempts",
		"next_retry_at",
		"last_attempt_at",
		"last_http_status",
		"last_error",
		"created_at",
		"updated_at",
	}

	for _, col := range deliveryCols {
		exists, err := columnExists(ctx, pool, "webhook_deliveries", col)
		if err != nil {
			t.Fatalf("columnExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Column %q should exist in webhook_deliveries table", col)
		}
	}
}

func TestIntegrationMigration_RollbackLedger(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	// Apply down migration
	downPath := filepath.Join(root, "migrations", "000002_ledger.down.sql")
	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		t.Fatalf("read down migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}

	// Verify tables don't exist
	for _, table := range []string{"accounts", "transfers"} {
		exists, err := tableExists(ctx, pool, table)
		if err != nil {
			t.Fatalf("tableExists failed: %v", err)
		}
		if exists {
			t.Errorf("%s table should not exist after rollback", table)
		}
	}

	// Re-apply up migration for cleanup
	upPath := filepath.Join(root, "migrations", "000002_ledger.up.sql")
	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		t.Fatalf("reapply up migration: %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	// Apply up migration again (should be idempotent via IF NOT EXISTS)
	// Note: This tests the CREATE EXTENSION IF NOT EXISTS clause
	upPath := filepath.Join(root, "migrations", "000001_init.up.sql")
	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		t.Fatalf("read init up migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		t.Fatalf("second apply should not fail: %v", err)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	return ctx, pool
}
