package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"gate-admission/internal/domain/model"
	"gate-admission/internal/infra/db/sqlite"
)

// openTestDB returns a migrated database in a temp dir, closed when the test ends.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "admission.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a worker backed by conn. The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB, startWithin time.Duration) *sqlite.Worker {
	t.Helper()

	w := sqlite.NewWorker(conn, startWithin)
	t.Cleanup(func() { w.Close() })
	return w
}

func newCred(t *testing.T, memberID, ticket, qr, manual string) *model.Credential {
	t.Helper()
	h, err := model.MemberHolder(memberID)
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	c, err := model.NewCredential(h, ticket, qr, manual, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	return c
}
