// pkg/connector/csv.go
package connector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// CSVSource reads a dataset from a CSV file with a header row
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource creates a source for the file at path
func NewCSVSource(path string, logger *zap.Logger) (*CSVSource, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &CSVSource{path: path, logger: logger.Named("csv-source")}, nil
}

// Load reads the whole file. The header fixes column order, every field is
// Text and empty fields are Missing.
func (s *CSVSource) Load(ctx context.Context) (*model.Dataset, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	ds, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	s.logger.Info("Loaded dataset",
		zap.String("path", s.path),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns())))
	return ds, nil
}

// ReadCSV decodes a CSV stream into a dataset
func ReadCSV(ctx context.Context, r io.Reader) (*model.Dataset, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	copy(columns, header)
	ds, err := model.NewDataset(columns)
	if err != nil {
		return nil, err
	}

	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]model.Cell, len(record))
		for i, field := range record {
			if field == "" {
				row[i] = model.Missing()
				continue
			}
			row[i] = model.Text(field)
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return ds, nil
}

// CSVSink writes a dataset to a CSV file, replacing it atomically
type CSVSink struct {
	path   string
	logger *zap.Logger
}

// NewCSVSink creates a sink for the file at path
func NewCSVSink(path string, logger *zap.Logger) (*CSVSink, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &CSVSink{path: path, logger: logger.Named("csv-sink")}, nil
}

// Write stores ds at the sink's path. Missing cells become empty fields.
func (s *CSVSink) Write(ctx context.Context, ds *model.Dataset) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WriteCSV(ctx, tmp, ds); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.logger.Info("Wrote dataset",
		zap.String("path", s.path),
		zap.Int("rows", ds.Len()))
	return nil
}

// WriteCSV encodes ds as CSV with a header row
func WriteCSV(ctx context.Context, w io.Writer, ds *model.Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Columns()); err != nil {
		return err
	}

	record := make([]string, len(ds.Columns()))
	for row := 0; row < ds.Len(); row++ {
		if row%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i, c := range ds.Row(row) {
			record[i] = c.String()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
