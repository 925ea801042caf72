// pkg/connector/audit.go
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/converter"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

const (
	auditSchema = "public"
	auditTable  = "credit_cleaning_audit"
)

var auditColumns = []string{
	`"run_id" TEXT NOT NULL`,
	`"dataset_name" TEXT NOT NULL`,
	`"column_name" TEXT NOT NULL`,
	`"row_index" INTEGER NOT NULL`,
	`"row_identifier" TEXT NULL`,
	`"original_value" TEXT NULL`,
	`"original_kind" TEXT NOT NULL`,
	`"new_value" TEXT NULL`,
	`"new_kind" TEXT NOT NULL`,
	`"cleaning_operation" TEXT NOT NULL`,
	`"cleaning_reason" TEXT NOT NULL`,
	`"cleaned_at" TIMESTAMPTZ NOT NULL`,
}

// auditRow is the persisted form of a CleaningOperation
type auditRow struct {
	RunID             string         `db:"run_id"`
	DatasetName       string         `db:"dataset_name"`
	ColumnName        string         `db:"column_name"`
	RowIndex          int            `db:"row_index"`
	RowIdentifier     sql.NullString `db:"row_identifier"`
	OriginalValue     sql.NullString `db:"original_value"`
	OriginalKind      string         `db:"original_kind"`
	NewValue          sql.NullString `db:"new_value"`
	NewKind           string         `db:"new_kind"`
	CleaningOperation string         `db:"cleaning_operation"`
	CleaningReason    string         `db:"cleaning_reason"`
	CleanedAt         time.Time      `db:"cleaned_at"`
}

func newAuditRow(op model.CleaningOperation) auditRow {
	return auditRow{
		RunID:             op.RunID,
		DatasetName:       op.DatasetName,
		ColumnName:        op.ColumnName,
		RowIndex:          op.RowIndex,
		RowIdentifier:     nullString(op.RowIdentifier),
		OriginalValue:     cellString(op.OriginalValue),
		OriginalKind:      op.OriginalValue.Kind().String(),
		NewValue:          cellString(op.NewValue),
		NewKind:           op.NewValue.Kind().String(),
		CleaningOperation: op.CleaningOperation,
		CleaningReason:    op.CleaningReason,
		CleanedAt:         op.CleanedAt,
	}
}

func cellString(c model.Cell) sql.NullString {
	if c.IsMissing() {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const insertAuditSQL = `INSERT INTO "public"."credit_cleaning_audit" (
	run_id, dataset_name, column_name, row_index, row_identifier,
	original_value, original_kind, new_value, new_kind,
	cleaning_operation, cleaning_reason, cleaned_at
) VALUES (
	:run_id, :dataset_name, :column_name, :row_index, :row_identifier,
	:original_value, :original_kind, :new_value, :new_kind,
	:cleaning_operation, :cleaning_reason, :cleaned_at
)`

// AuditRecorder persists cleaning operations into the audit table
type AuditRecorder struct {
	conn      *PostgresConnector
	db        *sqlx.DB
	batchSize int
	logger    *zap.Logger
}

// NewAuditRecorder creates a recorder writing through conn
func NewAuditRecorder(conn *PostgresConnector, logger *zap.Logger) (*AuditRecorder, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conn == nil {
		return nil, errors.New("postgres connector cannot be nil")
	}
	return &AuditRecorder{
		conn:      conn,
		db:        sqlx.NewDb(conn.DB(), "pgx"),
		batchSize: clampBatchSize(conn.cfg.BatchSize, 12),
		logger:    logger.Named("audit"),
	}, nil
}

// EnsureTable creates the audit table if it does not exist
func (r *AuditRecorder) EnsureTable(ctx context.Context) error {
	return r.conn.CreateTableIfNotExists(ctx, auditSchema, auditTable, auditColumns)
}

// RecordCleaningOperations inserts operations in batches within one
// transaction, so a run's trail is stored whole or not at all
func (r *AuditRecorder) RecordCleaningOperations(ctx context.Context, operations []model.CleaningOperation) error {
	if len(operations) == 0 {
		return nil
	}
	if err := r.EnsureTable(ctx); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(operations); i += r.batchSize {
		end := i + r.batchSize
		if end > len(operations) {
			end = len(operations)
		}

		rows := make([]auditRow, 0, end-i)
		for _, op := range operations[i:end] {
			rows = append(rows, newAuditRow(op))
		}

		if _, err := tx.NamedExecContext(ctx, insertAuditSQL, rows); err != nil {
			return fmt.Errorf("failed to insert audit batch at %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit records: %w", err)
	}

	r.logger.Info("Stored cleaning audit trail",
		zap.String("table", converter.QualifiedName(auditSchema, auditTable)),
		zap.Int("operations", len(operations)))
	return nil
}
