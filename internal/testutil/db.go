// Package testutil provides helpers for store integration tests. Every helper
// skips the test when its environment variable is unset.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"roadtrip/internal/db"
)

// NewPool connects to TEST_DATABASE_URL, applies the migrations and empties
// every table so each test starts from a clean schema.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	pool, err := db.New(dsn, 5, "1m")
	if err != nil {
		t.Fatalf("testutil.NewPool: open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("testutil.NewPool: migrate: %v", err)
	}

	if _, err := pool.Exec(ctx, `TRUNCATE users, roadtrips, comments, reviews, follows CASCADE`); err != nil {
		t.Fatalf("testutil.NewPool: truncate: %v", err)
	}
	return pool
}

// NewMongo connects to TEST_MONGO_URI and returns a throwaway database that
// is dropped when the test finishes.
func NewMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping integration test")
	}

	client, database, err := db.NewMongo(context.Background(), uri, "roadtrip_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("testutil.NewMongo: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return database
}
