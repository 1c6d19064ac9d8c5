package postgres

import (
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql

	"github.com/haguru/doorquest/config"
	"github.com/haguru/doorquest/pkg/databases/sqldb"
)

const DriverName = "postgres"

// Dialect is the PostgreSQL flavour of sqldb: lib/pq with $n placeholders.
var Dialect = sqldb.Dialect{
	DriverName: DriverName,
	Placeholder: func(n int) string {
		return fmt.Sprintf("$%d", n)
	},
}

// NewPostgresDatabaseClient returns an unconnected PostgreSQL client.
func NewPostgresDatabaseClient(cfg *config.PostgresConfig) *sqldb.SQLDatabaseClient {
	return sqldb.NewSQLDatabaseClient(Dialect, sqldb.Options{
		MaxOpenConns:    cfg.Options.MaxOpenConns,
		MaxIdleConns:    cfg.Options.MaxIdleConns,
		ConnMaxLifetime: cfg.Options.ConnMaxLifetime,
		ValidTables:     cfg.ValidTables,
		ValidFields:     cfg.ValidFields,
	})
}
