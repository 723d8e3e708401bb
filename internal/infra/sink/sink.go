// Package sink appends result rows to a CSV file, durably, one row at a time.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/domain"
)

// Row is one output line: the source record and its outcome.
type Row struct {
	Record  domain.Record
	Outcome domain.Outcome
}

// Fields renders the row in output column order: id, year, text, score, reason.
func (r Row) Fields() []string {
	return []string{
		r.Record.ID,
		strconv.Itoa(r.Record.Year),
		r.Record.Text,
		strconv.Itoa(int(r.Outcome.Score)),
		r.Outcome.Reason,
	}
}

// Writer appends rows and tracks the file size after each flushed row.
type Writer struct {
	file   afero.File
	csv    *csv.Writer
	offset int64
}

// countingWriter tracks bytes handed to the file.
type countingWriter struct {
	w *Writer
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.file.Write(p)
	c.w.offset += int64(n)
	return n, err
}

// Create truncates or creates the file and writes the header.
func Create(fs afero.Fs, path string, header []string) (*Writer, error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return start(f, 0, header)
}

// Resume reopens the file, cuts it back to offset and positions for
// appending. The header is written only if the file is then empty.
func Resume(fs afero.Fs, path string, header []string, offset int64) (*Writer, error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}
	if info.Size() < offset {
		_ = f.Close()
		return nil, fmt.Errorf("output is %d bytes, shorter than checkpoint offset %d", info.Size(), offset)
	}
	if info.Size() > offset {
		// Drop rows written after the last checkpoint
		if err := f.Truncate(offset); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("truncate output: %w", err)
		}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek output: %w", err)
	}
	return start(f, offset, header)
}

func start(f afero.File, offset int64, header []string) (*Writer, error) {
	w := &Writer{file: f, offset: offset}
	w.csv = csv.NewWriter(countingWriter{w: w})
	if offset == 0 && len(header) > 0 {
		if err := w.write(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return w, nil
}

// Append writes one row and forces it to stable storage.
func (w *Writer) Append(row Row) error {
	if err := w.write(row.Fields()); err != nil {
		return fmt.Errorf("append row %d: %w", row.Record.Index, err)
	}
	return nil
}

func (w *Writer) write(fields []string) error {
	if err := w.csv.Write(fields); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Offset returns the file size after the last written row.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Size returns the current size of the file at path, 0 when it does not exist.
func Size(fs afero.Fs, path string) (int64, error) {
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
