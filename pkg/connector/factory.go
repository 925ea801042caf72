// pkg/connector/factory.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/config"
)

// Location schemes
const (
	SchemeFile      = "file"
	SchemeSnowflake = "snowflake"
	SchemePostgres  = "postgres"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Location identifies where a dataset is read from or written to.
// "snowflake:SCHEMA.TABLE" and "postgres:schema.table" name tables;
// anything else is a CSV file path.
type Location struct {
	Scheme string
	Path   string
	Schema string
	Table  string
}

// String returns the location in the form it was parsed from
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Path
	}
	return l.Scheme + ":" + l.Schema + "." + l.Table
}

// ParseLocation parses a location string
func ParseLocation(loc string) (Location, error) {
	if loc == "" {
		return Location{}, errors.New("location cannot be empty")
	}

	scheme, rest, found := strings.Cut(loc, ":")
	if !found || (scheme != SchemeSnowflake && scheme != SchemePostgres) {
		return Location{Scheme: SchemeFile, Path: loc}, nil
	}

	schema, table, found := strings.Cut(rest, ".")
	if !found {
		return Location{}, fmt.Errorf("location %q must name <schema>.<table>", loc)
	}
	for _, ident := range []string{schema, table} {
		if !identifierPattern.MatchString(ident) {
			return Location{}, fmt.Errorf("location %q: invalid identifier %q", loc, ident)
		}
	}

	return Location{Scheme: scheme, Schema: schema, Table: table}, nil
}

// ConnectorFactory creates sources, sinks and the audit recorder, opening
// each database connection once
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger

	mu        sync.Mutex
	snowflake *SnowflakeConnector
	postgres  *PostgresConnector
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) (*ConnectorFactory, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger.Named("connector-factory"),
	}, nil
}

// Source returns the Source for loc
func (f *ConnectorFactory) Source(ctx context.Context, loc string) (Source, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}

	switch l.Scheme {
	case SchemeSnowflake:
		conn, err := f.SnowflakeConnector(ctx)
		if err != nil {
			return nil, err
		}
		return NewSnowflakeSource(conn, l.Schema, l.Table, f.logger)
	case SchemePostgres:
		return nil, fmt.Errorf("location %s: reading from PostgreSQL is not supported", l)
	default:
		return NewCSVSource(l.Path, f.logger)
	}
}

// Sink returns the Sink for loc
func (f *ConnectorFactory) Sink(ctx context.Context, loc string) (Sink, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}

	switch l.Scheme {
	case SchemePostgres:
		conn, err := f.PostgresConnector(ctx)
		if err != nil {
			return nil, err
		}
		return NewPostgresSink(conn, l.Schema, l.Table, f.logger)
	case SchemeSnowflake:
		return nil, fmt.Errorf("location %s: writing to Snowflake is not supported", l)
	default:
		return NewCSVSink(l.Path, f.logger)
	}
}

// AuditRecorder returns a recorder backed by the PostgreSQL connection
func (f *ConnectorFactory) AuditRecorder(ctx context.Context) (*AuditRecorder, error) {
	conn, err := f.PostgresConnector(ctx)
	if err != nil {
		return nil, err
	}
	return NewAuditRecorder(conn, f.logger)
}

// SnowflakeConnector returns the shared Snowflake connector, connecting on
// first use
func (f *ConnectorFactory) SnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snowflake != nil {
		return f.snowflake, nil
	}

	f.logger.Info("Creating Snowflake connector")
	sfCfg, err := f.cfg.LoadSnowflake()
	if err != nil {
		return nil, err
	}
	conn, err := NewSnowflakeConnector(ctx, sfCfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}
	f.snowflake = conn
	return conn, nil
}

// PostgresConnector returns the shared PostgreSQL connector, connecting on
// first use
func (f *ConnectorFactory) PostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postgres != nil {
		return f.postgres, nil
	}

	f.logger.Info("Creating PostgreSQL connector")
	pgCfg, err := f.cfg.LoadPostgres()
	if err != nil {
		return nil, err
	}
	conn, err := NewPostgresConnector(ctx, pgCfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}
	f.postgres = conn
	return conn, nil
}

// Close closes every connection the factory opened
func (f *ConnectorFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.snowflake != nil {
		errs = append(errs, f.snowflake.Close())
		f.snowflake = nil
	}
	if f.postgres != nil {
		errs = append(errs, f.postgres.Close())
		f.postgres = nil
	}
	return errors.Join(errs...)
}
