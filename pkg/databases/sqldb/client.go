// Package sqldb implements interfaces.DBClient on top of database/sql.
// Driver specific details (driver name, placeholder syntax, connection
// hooks) are supplied by a Dialect; see the postgres and sqlite packages.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/haguru/doorquest/internal/interfaces"
)

const (
	// IDColumn is the surrogate key every table carries. Result ordering uses it.
	IDColumn = "id"

	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections to the database.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 30 * time.Second
)

// Dialect captures what differs between SQL drivers.
type Dialect struct {
	DriverName string
	// Placeholder returns the bind parameter for the n-th (1-based) argument.
	Placeholder func(n int) string
	// BeforeOpen runs before sql.Open, e.g. to create a database directory.
	BeforeOpen func(dsn string) error
	// AfterConnect runs once the connection has been verified.
	AfterConnect func(ctx context.Context, db *sql.DB) error
}

// Options holds the connection pool settings.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ValidTables     []string
	ValidFields     []string
}

// SQLDatabaseClient implements the DBClient interface for SQL databases.
// Table and column names are interpolated into queries, so only allow-listed
// identifiers are accepted; values always go through bind parameters.
type SQLDatabaseClient struct {
	db              *sql.DB
	dialect         Dialect
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	validTables     map[string]bool
	validFields     map[string]bool
}

// NewSQLDatabaseClient returns an unconnected client. Zero pool settings fall back to the defaults.
func NewSQLDatabaseClient(dialect Dialect, opts Options) *SQLDatabaseClient {
	c := &SQLDatabaseClient{
		dialect:         dialect,
		MaxOpenConns:    opts.MaxOpenConns,
		MaxIdleConns:    opts.MaxIdleConns,
		ConnMaxLifetime: opts.ConnMaxLifetime,
		validTables:     toSet(opts.ValidTables),
		validFields:     toSet(opts.ValidFields),
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	return c
}

// Connect opens the database and verifies the connection.
func (c *SQLDatabaseClient) Connect(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("%s: DSN is empty", c.dialect.DriverName)
	}
	if c.dialect.BeforeOpen != nil {
		if err := c.dialect.BeforeOpen(dsn); err != nil {
			return err
		}
	}

	db, err := sql.Open(c.dialect.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", c.dialect.DriverName, err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s database: %w", c.dialect.DriverName, err)
	}
	if c.dialect.AfterConnect != nil {
		if err := c.dialect.AfterConnect(ctx, db); err != nil {
			_ = db.Close()
			return err
		}
	}
	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *SQLDatabaseClient) Disconnect(ctx context.Context) error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InsertOne inserts a map[string]interface{} row and returns the generated id as int64.
func (c *SQLDatabaseClient) InsertOne(ctx context.Context, tableName string, document interfaces.Document) (interface{}, error) {
	if err := c.ready(tableName); err != nil {
		return nil, err
	}
	docMap, ok := document.(map[string]interface{})
	if !ok || len(docMap) == 0 {
		return nil, fmt.Errorf("InsertOne expects a non-empty map[string]interface{} document")
	}

	columns, values, err := c.split(docMap)
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = c.dialect.Placeholder(i + 1)
	}

	// identifiers are allow-listed, values are bound
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		IDColumn,
	) // #nosec G201

	var insertedID int64
	if err := c.db.QueryRowContext(ctx, query, values...).Scan(&insertedID); err != nil {
		return nil, err
	}
	return insertedID, nil
}

// FindOne decodes the matching row with the lowest id into result, a pointer
// to a struct whose fields carry `db` tags.
func (c *SQLDatabaseClient) FindOne(ctx context.Context, tableName string, filter interfaces.Document, result interfaces.Document) error {
	filterMap, ok := filter.(map[string]interface{})
	if !ok || len(filterMap) == 0 {
		return fmt.Errorf("FindOne requires a non-empty map[string]interface{} filter")
	}
	rows, err := c.find(ctx, tableName, filterMap, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return interfaces.ErrNoDocuments
	}
	return Decode(rows[0], result)
}

// FindMany returns every matching row as map[string]interface{}, ordered by id.
func (c *SQLDatabaseClient) FindMany(ctx context.Context, tableName string, filter interfaces.Document) ([]interfaces.Document, error) {
	filterMap := map[string]interface{}{}
	if filter != nil {
		m, ok := filter.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("FindMany expects filter to be map[string]interface{}")
		}
		filterMap = m
	}
	rows, err := c.find(ctx, tableName, filterMap, 0)
	if err != nil {
		return nil, err
	}
	results := make([]interfaces.Document, 0, len(rows))
	for _, row := range rows {
		results = append(results, row)
	}
	return results, nil
}

// UpdateOne sets the columns in update on rows matching filter and returns
// the number of rows affected. Callers filter on the id column.
func (c *SQLDatabaseClient) UpdateOne(ctx context.Context, tableName string, filter interfaces.Document, update interfaces.Document) (int64, error) {
	if err := c.ready(tableName); err != nil {
		return 0, err
	}
	filterMap, ok := filter.(map[string]interface{})
	if !ok || len(filterMap) == 0 {
		return 0, fmt.Errorf("UpdateOne requires a non-empty map[string]interface{} filter")
	}
	updateMap, ok := update.(map[string]interface{})
	if !ok || len(updateMap) == 0 {
		return 0, fmt.Errorf("UpdateOne requires a non-empty map[string]interface{} update")
	}

	setColumns, values, err := c.split(updateMap)
	if err != nil {
		return 0, err
	}
	setClauses := make([]string, len(setColumns))
	for i, col := range setColumns {
		setClauses[i] = fmt.Sprintf("%s = %s", col, c.dialect.Placeholder(i+1))
	}
	where, whereValues, err := c.where(filterMap, len(values)+1)
	if err != nil {
		return 0, err
	}
	values = append(values, whereValues...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", tableName, strings.Join(setClauses, ", "), where) // #nosec G201

	res, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EnsureSchema executes DDL. schema is a single statement string or a []string of statements.
func (c *SQLDatabaseClient) EnsureSchema(ctx context.Context, tableName string, schema interfaces.Document) error {
	if err := c.ready(tableName); err != nil {
		return err
	}

	var statements []string
	switch s := schema.(type) {
	case string:
		statements = []string{s}
	case []string:
		statements = s
	default:
		return fmt.Errorf("EnsureSchema expects a DDL string or []string, got %T", schema)
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema for %s: %w", tableName, err)
		}
	}
	return nil
}

// Ping checks the health of the connection.
func (c *SQLDatabaseClient) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("%s client is not connected", c.dialect.DriverName)
	}
	return c.db.PingContext(ctx)
}

// Decode copies a row map onto a struct using its `db` tags.
func Decode(row map[string]interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		Result:           result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(row)
}

func (c *SQLDatabaseClient) find(ctx context.Context, tableName string, filter map[string]interface{}, limit int) ([]map[string]interface{}, error) {
	if err := c.ready(tableName); err != nil {
		return nil, err
	}
	where, values, err := c.where(filter, 1)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s", tableName, where, IDColumn) // #nosec G201
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		columnValues := make([]interface{}, len(columns))
		columnPointers := make([]interface{}, len(columns))
		for i := range columns {
			columnPointers[i] = &columnValues[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := columnValues[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = columnValues[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// where builds " WHERE a = $n AND ..." starting at placeholder index start.
func (c *SQLDatabaseClient) where(filter map[string]interface{}, start int) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	columns, values, err := c.split(filter)
	if err != nil {
		return "", nil, err
	}
	clauses := make([]string, len(columns))
	for i, col := range columns {
		clauses[i] = fmt.Sprintf("%s = %s", col, c.dialect.Placeholder(start+i))
	}
	return " WHERE " + strings.Join(clauses, " AND "), values, nil
}

// split returns the map's columns in sorted order with their values.
func (c *SQLDatabaseClient) split(doc map[string]interface{}) ([]string, []interface{}, error) {
	columns := make([]string, 0, len(doc))
	for col := range doc {
		if !c.validFields[col] {
			return nil, nil, fmt.Errorf("invalid column name: %s", col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	values := make([]interface{}, len(columns))
	for i, col := range columns {
		values[i] = doc[col]
	}
	return columns, values, nil
}

func (c *SQLDatabaseClient) ready(tableName string) error {
	if c.db == nil {
		return fmt.Errorf("%s client is not connected", c.dialect.DriverName)
	}
	if !c.validTables[tableName] {
		return fmt.Errorf("invalid table name: %s", tableName)
	}
	return nil
}

func toSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, item := range list {
		result[item] = true
	}
	return result
}
