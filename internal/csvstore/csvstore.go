// Package csvstore appends fetched rows to the irradiance CSV file.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/common"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

// DefaultBatchSize is the number of rows buffered before a flush.
const DefaultBatchSize = 50

// Header returns the leading columns followed by the sorted union of all
// other keys across rows.
func Header(rows []solar.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row.Months {
			seen[k] = struct{}{}
		}
	}
	return mergeHeader(solar.LeadingColumns, seen)
}

func mergeHeader(leading []string, extra map[string]struct{}) []string {
	lead := make(map[string]struct{}, len(leading))
	for _, c := range leading {
		lead[c] = struct{}{}
	}

	rest := make([]string, 0, len(extra))
	for k := range extra {
		if _, ok := lead[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)

	out := make([]string, 0, len(leading)+len(rest))
	out = append(out, leading...)
	return append(out, rest...)
}

// ReadRecords reads the CSV at path. A missing or empty file yields no header
// and no records.
func ReadRecords(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err = r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	records, err = r.ReadAll()
	if err != nil {
		return header, records, fmt.Errorf("read %s: %w", path, err)
	}
	return header, records, nil
}

// Writer appends rows to a CSV file.
type Writer struct {
	path   string
	logger *zap.Logger
}

// NewWriter creates a Writer for path.
func NewWriter(path string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{path: path, logger: logger}
}

// Path returns the CSV path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes rows at the end of the file. The header is written only when
// the file does not exist or is empty; otherwise the existing column order is
// kept. If rows carry columns the existing header lacks, the file is
// rewritten once with the widened header.
func (w *Writer) Append(rows []solar.Row) error {
	if len(rows) == 0 {
		return nil
	}

	existing, err := w.readHeader()
	if err != nil {
		return err
	}

	if existing == nil {
		return w.appendRows(Header(rows), rows, true)
	}

	missing := make(map[string]struct{})
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c] = struct{}{}
	}
	for _, c := range Header(rows) {
		if _, ok := have[c]; !ok {
			missing[c] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return w.appendRows(existing, rows, false)
	}

	w.logger.Info("widening csv header",
		zap.String("path", w.path),
		zap.Int("new_columns", len(missing)))
	return w.rewriteWith(existing, missing, rows)
}

func (w *Writer) readHeader() ([]string, error) {
	f, err := os.Open(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", w.path, err)
	}
	return header, nil
}

func (w *Writer) appendRows(header []string, rows []solar.Row, withHeader bool) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}

	cw := csv.NewWriter(f)
	if withHeader {
		if err := cw.Write(header); err != nil {
			f.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range rows {
		if err := cw.Write(project(header, row.Values())); err != nil {
			f.Close()
			return fmt.Errorf("write row %s: %w", row.Location.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return f.Close()
}

func (w *Writer) rewriteWith(existing []string, missing map[string]struct{}, rows []solar.Row) error {
	_, records, err := ReadRecords(w.path)
	if err != nil {
		return err
	}

	extra := make(map[string]struct{}, len(existing)+len(missing))
	for _, c := range existing {
		extra[c] = struct{}{}
	}
	for c := range missing {
		extra[c] = struct{}{}
	}
	header := mergeHeader(solar.LeadingColumns, extra)

	return common.WriteFileAtomic(w.path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, rec := range records {
			values := make(map[string]string, len(existing))
			for i, c := range existing {
				if i < len(rec) {
					values[c] = rec[i]
				}
			}
			if err := cw.Write(project(header, values)); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if err := cw.Write(project(header, row.Values())); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func project(header []string, values map[string]string) []string {
	out := make([]string, len(header))
	for i, c := range header {
		out[i] = values[c]
	}
	return out
}

// Batch accumulates rows and flushes them to a Writer once it holds size
// rows. The caller owns the batch and must Flush it at the end of a run.
type Batch struct {
	writer  *Writer
	size    int
	rows    []solar.Row
	flushed int
	logger  *zap.Logger
}

// NewBatch creates a Batch. A size <= 0 uses DefaultBatchSize.
func NewBatch(w *Writer, size int) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{
		writer: w,
		size:   size,
		rows:   make([]solar.Row, 0, size),
		logger: w.logger,
	}
}

// Add buffers row and flushes when the batch is full.
func (b *Batch) Add(row solar.Row) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.size {
		return b.Flush()
	}
	return nil
}

// Flush writes the buffered rows. The buffer is kept on error so a later
// Flush can retry.
func (b *Batch) Flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := b.writer.Append(b.rows); err != nil {
		return err
	}
	b.logger.Info("saved batch",
		zap.Int("rows", len(b.rows)),
		zap.String("path", b.writer.Path()))
	b.flushed += len(b.rows)
	b.rows = b.rows[:0]
	return nil
}

// Len returns the number of buffered rows.
func (b *Batch) Len() int {
	return len(b.rows)
}

// Flushed returns the number of rows written so far.
func (b *Batch) Flushed() int {
	return b.flushed
}
