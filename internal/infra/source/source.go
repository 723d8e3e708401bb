// Package source reads input records from CSV or XLSX files.
package source

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/config"
	"github.com/vietddude/labeler/internal/core/domain"
)

// ErrInput marks a fatal input problem: unreadable file, unknown format,
// missing columns or malformed values.
var ErrInput = errors.New("input error")

// Load reads every record of the configured input in source order.
func Load(fs afero.Fs, cfg config.InputConfig) ([]domain.Record, error) {
	f, err := fs.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInput, cfg.Path, err)
	}
	defer f.Close()

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(cfg.Path)); ext {
	case ".csv":
		rows, err = readCSV(f)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(f, cfg.Sheet)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInput, cfg.Path, err)
	}

	return toRecords(rows, cfg.Columns)
}

// toRecords maps a header row plus data rows onto records.
func toRecords(rows [][]string, cols config.ColumnMapping) ([]domain.Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrInput)
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}

	var missing []string
	pos := func(name string) int {
		i, ok := header[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	idCol, yearCol, textCol := pos(cols.ID), pos(cols.Year), pos(cols.Text)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrInput, strings.Join(missing, ", "))
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		year, err := parseYear(cell(row, yearCol))
		if err != nil {
			// n+2: 1-based with the header
			return nil, fmt.Errorf("%w: row %d: %v", ErrInput, n+2, err)
		}
		records = append(records, domain.Record{
			Index: len(records),
			ID:    strings.TrimSpace(cell(row, idCol)),
			Year:  year,
			Text:  cell(row, textCol),
		})
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseYear accepts integers and integral floats such as "2020.0". Empty is 0.
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return int(f), nil
}
