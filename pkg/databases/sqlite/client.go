package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver for database/sql

	"github.com/haguru/doorquest/config"
	"github.com/haguru/doorquest/pkg/databases/sqldb"
)

const DriverName = "sqlite"

// Dialect is the SQLite flavour of sqldb. SQLite has a single writer, so the
// pool is pinned to one connection by NewSQLiteDatabaseClient.
var Dialect = sqldb.Dialect{
	DriverName: DriverName,
	Placeholder: func(int) string {
		return "?"
	},
	BeforeOpen: func(dsn string) error {
		if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		return nil
	},
	AfterConnect: func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
			return fmt.Errorf("set busy timeout: %w", err)
		}
		return nil
	},
}

// NewSQLiteDatabaseClient returns an unconnected SQLite client. The DSN passed
// to Connect is the database file path.
func NewSQLiteDatabaseClient(cfg *config.SQLiteConfig) *sqldb.SQLDatabaseClient {
	return sqldb.NewSQLDatabaseClient(Dialect, sqldb.Options{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		ValidTables:  cfg.ValidTables,
		ValidFields:  cfg.ValidFields,
	})
}
