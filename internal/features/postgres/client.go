package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"surveysync/internal/features/schema"

	"github.com/lib/pq"
)

// Client wraps one target database connection pool. It is the writer handed
// to the sync orchestrator and the catalog reader behind the pg routes.
type Client struct {
	db *sql.DB
}

func newClient(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

// ListSchemas reads the full catalog: every non-system schema with its
// tables, columns and primary keys
func (c *Client) ListSchemas(ctx context.Context) ([]schema.SchemaDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schema_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []schema.SchemaDefinition
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, schema.SchemaDefinition{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range schemas {
		tables, err := c.ListTables(ctx, schemas[i].Name)
		if err != nil {
			return nil, err
		}
		schemas[i].Tables = tables
	}
	return schemas, nil
}

// ListTables returns table snapshots for one schema
func (c *Client) ListTables(ctx context.Context, schemaName string) ([]schema.TableDefinition, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", schemaName, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]schema.TableDefinition, 0, len(names))
	for _, name := range names {
		table, err := c.DescribeTable(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		if table != nil {
			tables = append(tables, *table)
		}
	}
	return tables, nil
}

// DescribeTable returns a column snapshot for one table, or nil if the table
// does not exist. The snapshot may be stale if the target changes
// concurrently; callers re-validate on each explicit call.
func (c *Client) DescribeTable(ctx context.Context, schemaName, tableName string) (*schema.TableDefinition, error) {
	exists, err := c.TableExists(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	pk, err := c.primaryKeyColumn(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	table := &schema.TableDefinition{Name: tableName, PrimaryKey: pk}
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, schema.ColumnDefinition{
			Name:         name,
			Type:         normalizeDataType(dataType),
			Nullable:     nullable == "YES",
			IsPrimaryKey: name == pk,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Row count estimate from the planner stats; exact counts are too
	// expensive for catalog browsing
	err = c.db.QueryRowContext(ctx, `
		SELECT COALESCE(reltuples::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`, schemaName, tableName).Scan(&table.RowCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if table.RowCount < 0 {
		table.RowCount = 0
	}

	return table, nil
}

// primaryKeyColumn returns the first primary key column of the table, or
// the empty string when the table has no primary key constraint
func (c *Client) primaryKeyColumn(ctx context.Context, schemaName, tableName string) (string, error) {
	var column string
	err := c.db.QueryRowContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
		LIMIT 1
	`, schemaName, tableName).Scan(&column)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read primary key of %s.%s: %w", schemaName, tableName, err)
	}
	return column, nil
}

func (c *Client) TableExists(ctx context.Context, schemaName, tableName string) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`, schemaName, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// CreateTable creates schemaName.tableName with the given columns. Returns
// ErrNameConflict when the table is already there.
func (c *Client) CreateTable(ctx context.Context, schemaName, tableName string, columns []schema.ColumnDefinition) error {
	exists, err := c.TableExists(ctx, schemaName, tableName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s.%s", ErrNameConflict, schemaName, tableName)
	}

	if _, err := c.db.ExecContext(ctx,
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schemaName))); err != nil {
		return fmt.Errorf("failed to ensure schema %s: %w", schemaName, err)
	}

	colDefs := make([]string, 0, len(columns))
	for _, col := range columns {
		def := fmt.Sprintf("%s %s", pq.QuoteIdentifier(col.Name), col.Type)
		if col.IsPrimaryKey {
			def += " PRIMARY KEY"
		} else if !col.Nullable {
			def += " NOT NULL"
		}
		colDefs = append(colDefs, def)
	}
	if len(colDefs) == 0 {
		colDefs = append(colDefs, "dummy TEXT")
	}

	query := fmt.Sprintf("CREATE TABLE %s.%s (%s)",
		pq.QuoteIdentifier(schemaName),
		pq.QuoteIdentifier(tableName),
		strings.Join(colDefs, ", "),
	)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", schemaName, tableName, err)
	}
	return nil
}

// FetchExisting returns the current row values for the given key values,
// keyed by the key column. Used to decide insert vs update vs skip.
func (c *Client) FetchExisting(ctx context.Context, schemaName, tableName, keyColumn string, keys []string) (map[string]map[string]string, error) {
	if len(keys) == 0 {
		return map[string]map[string]string{}, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s.%s WHERE %s = ANY($1)",
		pq.QuoteIdentifier(schemaName),
		pq.QuoteIdentifier(tableName),
		pq.QuoteIdentifier(keyColumn),
	)
	rows, err := c.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to probe existing rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	existing := make(map[string]map[string]string)
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanArgs := make([]interface{}, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}

		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if values[i].Valid {
				row[col] = values[i].String
			}
		}
		if key, ok := row[keyColumn]; ok && key != "" {
			existing[key] = row
		}
	}
	return existing, rows.Err()
}

// InsertRow inserts a single record. Per-record statements keep one bad
// value from poisoning the rest of the batch.
func (c *Client) InsertRow(ctx context.Context, schemaName, tableName string, row map[string]string) error {
	columns := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	values := make([]interface{}, 0, len(row))
	for col, val := range row {
		columns = append(columns, pq.QuoteIdentifier(col))
		values = append(values, val)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(values)))
	}

	query := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		pq.QuoteIdentifier(schemaName),
		pq.QuoteIdentifier(tableName),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := c.db.ExecContext(ctx, query, values...)
	return err
}

// UpdateRow updates a single record matched by the key column
func (c *Client) UpdateRow(ctx context.Context, schemaName, tableName, keyColumn string, row map[string]string) error {
	assignments := make([]string, 0, len(row))
	values := make([]interface{}, 0, len(row))
	for col, val := range row {
		if col == keyColumn {
			continue
		}
		values = append(values, val)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), len(values)))
	}
	if len(assignments) == 0 {
		return nil
	}

	values = append(values, row[keyColumn])
	query := fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(schemaName),
		pq.QuoteIdentifier(tableName),
		strings.Join(assignments, ", "),
		pq.QuoteIdentifier(keyColumn),
		len(values),
	)
	_, err := c.db.ExecContext(ctx, query, values...)
	return err
}

// Truncate empties the table; used by replace mode before reloading
func (c *Client) Truncate(ctx context.Context, schemaName, tableName string) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s.%s",
		pq.QuoteIdentifier(schemaName),
		pq.QuoteIdentifier(tableName),
	)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate %s.%s: %w", schemaName, tableName, err)
	}
	return nil
}

// normalizeDataType folds the verbose information_schema names into the
// short forms the mapper emits
func normalizeDataType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "character varying", "character", "text":
		return "TEXT"
	case "integer", "bigint", "smallint":
		return "INTEGER"
	case "numeric", "double precision", "real":
		return "NUMERIC"
	case "date":
		return "DATE"
	case "timestamp with time zone":
		return "TIMESTAMPTZ"
	case "timestamp without time zone":
		return "TIMESTAMP"
	case "array":
		return "TEXT[]"
	case "user-defined":
		return "GEOGRAPHY(POINT,4326)"
	default:
		return strings.ToUpper(dataType)
	}
}
