// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/config"
	"github.com/David-Botos/credit-cleaning/pkg/converter"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeConnector, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	logger = logger.Named("snowflake-connector")

	dsn, err := snowflakeDSN(cfg)
	if err != nil {
		return nil, err
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db)
	return &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// snowflakeDSN builds the driver DSN; the statement timeout travels as a
// session parameter so every pooled connection carries it
func snowflakeDSN(cfg *config.SnowflakeConfig) (string, error) {
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}
	if cfg.QueryTimeout > 0 {
		timeout := fmt.Sprintf("%d", int(cfg.QueryTimeout.Seconds()))
		sfConfig.Params = map[string]*string{
			"STATEMENT_TIMEOUT_IN_SECONDS": &timeout,
		}
	}

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return "", fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}
	return dsn, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// ExecWithTimeout executes a statement with a timeout
func (c *SnowflakeConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// SnowflakeSource loads a raw credit table from Snowflake
type SnowflakeSource struct {
	conn      *SnowflakeConnector
	converter *converter.TypeConverter
	schema    string
	table     string
	logger    *zap.Logger
}

// NewSnowflakeSource creates a source reading schema.table through conn
func NewSnowflakeSource(conn *SnowflakeConnector, schema, table string, logger *zap.Logger) (*SnowflakeSource, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conn == nil {
		return nil, errors.New("snowflake connector cannot be nil")
	}
	return &SnowflakeSource{
		conn:      conn,
		converter: converter.NewTypeConverter(logger),
		schema:    schema,
		table:     table,
		logger:    logger.Named("snowflake-source"),
	}, nil
}

// Load reads the whole table. Every value becomes Text; NULL becomes Missing.
func (s *SnowflakeSource) Load(ctx context.Context) (*model.Dataset, error) {
	// schema and table are validated identifiers (see ParseLocation)
	query := fmt.Sprintf("SELECT * FROM %s.%s", s.schema, s.table)

	timeout := s.conn.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := s.conn.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", s.schema, s.table, err)
	}
	defer rows.Close()

	ds, err := s.scan(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", s.schema, s.table, err)
	}

	s.logger.Info("Loaded dataset",
		zap.String("table", s.schema+"."+s.table),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns())))
	return ds, nil
}

func (s *SnowflakeSource) scan(rows *sql.Rows) (*model.Dataset, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	ds, err := model.NewDataset(canonicalColumns(names))
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(names))
	pointers := make([]interface{}, len(names))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("row %d: %w", ds.Len(), err)
		}
		row := make([]model.Cell, len(values))
		for i, v := range values {
			row[i] = s.converter.ToCell(v)
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ds, nil
}
