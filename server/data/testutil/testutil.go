package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/honganh1206/stargazer/server/db"
	_ "github.com/mattn/go-sqlite3"
)

// CreateTestDB opens a fresh sqlite file under the test's temp dir with the
// given schemas applied. It is closed when the test ends.
func CreateTestDB(t *testing.T, schemas ...string) *sql.DB {
	t.Helper()

	testDBPath := filepath.Join(t.TempDir(), "test.db")

	db, err := db.OpenDB(db.DefaultConfig(testDBPath), schemas...)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
