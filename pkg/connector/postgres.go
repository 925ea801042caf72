// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/config"
	"github.com/David-Botos/credit-cleaning/pkg/converter"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// maxBindParameters is the PostgreSQL limit on parameters per statement
const maxBindParameters = 65535

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL
type PostgresConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresConnector, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.Named("postgres-connector")

	// Log connection attempt
	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db)
	return &PostgresConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// statementTimeout returns the configured per-statement timeout
func (c *PostgresConnector) statementTimeout() time.Duration {
	if c.cfg.StatementTimeout > 0 {
		return c.cfg.StatementTimeout
	}
	return 30 * time.Second
}

// ExecWithTimeout executes a statement with a timeout
func (c *PostgresConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// EnsureSchema creates a schema if it doesn't exist
func (c *PostgresConnector) EnsureSchema(ctx context.Context, schema string) error {
	_, err := c.ExecWithTimeout(ctx,
		"CREATE SCHEMA IF NOT EXISTS "+converter.QuoteIdentifier(schema),
		c.statementTimeout())
	return err
}

// CreateTableIfNotExists creates a table with the given column definitions
func (c *PostgresConnector) CreateTableIfNotExists(
	ctx context.Context,
	schema string,
	table string,
	columnDefs []string,
) error {
	fullTableName := converter.QualifiedName(schema, table)

	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		fullTableName,
		strings.Join(columnDefs, ",\n\t"),
	)

	if _, err := c.ExecWithTimeout(ctx, createSQL, c.statementTimeout()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", fullTableName, err)
	}

	c.logger.Debug("Ensured table", zap.String("table", fullTableName))
	return nil
}

// TruncateTable removes every row from a table
func (c *PostgresConnector) TruncateTable(ctx context.Context, schema, table string) error {
	fullTableName := converter.QualifiedName(schema, table)
	if _, err := c.ExecWithTimeout(ctx, "TRUNCATE TABLE "+fullTableName, c.statementTimeout()); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fullTableName, err)
	}
	return nil
}

// VerifyRowCount checks that a table holds exactly expected rows
func (c *PostgresConnector) VerifyRowCount(ctx context.Context, schema, table string, expected int64) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.statementTimeout())
	defer cancel()

	var count int64
	countQuery := "SELECT COUNT(*) FROM " + converter.QualifiedName(schema, table)
	if err := c.db.QueryRowContext(queryCtx, countQuery).Scan(&count); err != nil {
		return fmt.Errorf("failed to count rows in %s.%s: %w", schema, table, err)
	}

	if count != expected {
		c.logger.Warn("Row count mismatch",
			zap.String("schema", schema),
			zap.String("table", table),
			zap.Int64("expected", expected),
			zap.Int64("actual", count))
		return fmt.Errorf("%s.%s holds %d rows, expected %d", schema, table, count, expected)
	}
	return nil
}

// BatchInsert performs a bulk insert into a table inside one transaction
func (c *PostgresConnector) BatchInsert(
	ctx context.Context,
	schema string,
	table string,
	columns []string,
	valueRows [][]driver.Value,
	batchSize int,
) (int64, error) {
	if len(valueRows) == 0 {
		return 0, nil
	}
	batchSize = clampBatchSize(batchSize, len(columns))

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var totalRowsInserted int64
	for i := 0; i < len(valueRows); i += batchSize {
		end := i + batchSize
		if end > len(valueRows) {
			end = len(valueRows)
		}

		query, args := buildInsert(schema, table, columns, valueRows[i:end])

		execCtx, cancel := context.WithTimeout(ctx, c.statementTimeout())
		result, err := tx.ExecContext(execCtx, query, args...)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("batch insert at row %d failed: %w", i, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			c.logger.Warn("Couldn't get rows affected", zap.Error(err))
		} else {
			totalRowsInserted += rowsAffected
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return totalRowsInserted, nil
}

// clampBatchSize keeps a batch under the bind parameter limit
func clampBatchSize(batchSize, columns int) int {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if columns > 0 && batchSize*columns > maxBindParameters {
		batchSize = maxBindParameters / columns
	}
	return batchSize
}

// buildInsert renders a multi-row INSERT with positional placeholders
func buildInsert(schema, table string, columns []string, rows [][]driver.Value) (string, []interface{}) {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = converter.QuoteIdentifier(col)
	}

	placeholders := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(columns))
	for j, row := range rows {
		rowPlaceholders := make([]string, len(columns))
		for k := range columns {
			rowPlaceholders[k] = fmt.Sprintf("$%d", j*len(columns)+k+1)
			args = append(args, row[k])
		}
		placeholders[j] = "(" + strings.Join(rowPlaceholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		converter.QualifiedName(schema, table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return query, args
}

// PostgresSink writes a cleaned dataset into a PostgreSQL table. The table is
// created from the dataset's column kinds and its previous rows are replaced.
type PostgresSink struct {
	conn      *PostgresConnector
	converter *converter.TypeConverter
	schema    string
	table     string
	batchSize int
	logger    *zap.Logger
}

// NewPostgresSink creates a sink for schema.table on conn
func NewPostgresSink(conn *PostgresConnector, schema, table string, logger *zap.Logger) (*PostgresSink, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conn == nil {
		return nil, errors.New("postgres connector cannot be nil")
	}
	return &PostgresSink{
		conn:      conn,
		converter: converter.NewTypeConverter(logger),
		schema:    schema,
		table:     table,
		batchSize: conn.cfg.BatchSize,
		logger:    logger.Named("postgres-sink"),
	}, nil
}

// Write creates the destination table if needed and loads ds into it
func (s *PostgresSink) Write(ctx context.Context, ds *model.Dataset) error {
	if err := s.conn.EnsureSchema(ctx, s.schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", s.schema, err)
	}
	if err := s.conn.CreateTableIfNotExists(ctx, s.schema, s.table, s.converter.GenerateColumnDefinitions(ds)); err != nil {
		return err
	}
	if err := s.conn.TruncateTable(ctx, s.schema, s.table); err != nil {
		return err
	}

	columns, rows, err := s.driverRows(ds)
	if err != nil {
		return err
	}

	inserted, err := s.conn.BatchInsert(ctx, s.schema, s.table, columns, rows, s.batchSize)
	if err != nil {
		return err
	}

	if err := s.conn.VerifyRowCount(ctx, s.schema, s.table, int64(ds.Len())); err != nil {
		return err
	}

	s.logger.Info("Wrote dataset",
		zap.String("table", s.schema+"."+s.table),
		zap.Int64("rows", inserted))
	return nil
}

func (s *PostgresSink) driverRows(ds *model.Dataset) ([]string, [][]driver.Value, error) {
	names := ds.Columns()
	kinds := converter.ColumnKinds(ds)

	columns := make([]string, len(names))
	for i, name := range names {
		columns[i] = s.converter.ColumnName(name)
	}

	rows := make([][]driver.Value, ds.Len())
	for r := 0; r < ds.Len(); r++ {
		values := make([]driver.Value, len(names))
		for i, c := range ds.Row(r) {
			v, err := s.converter.ToDriverValue(c, kinds[i])
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %s: %w", r, names[i], err)
			}
			values[i] = v
		}
		rows[r] = values
	}
	return columns, rows, nil
}
