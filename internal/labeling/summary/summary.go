// Package summary aggregates an output file per (id, year).
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Header is the summary file's column row.
var Header = []string{"id", "year", "score_sum", "rows", "relevant_rows", "typical_reason"}

// Group is the aggregate of all rows sharing an id and year.
type Group struct {
	ID            string
	Year          string
	ScoreSum      int
	Rows          int
	RelevantRows  int // rows with a non-zero score
	TypicalReason string
	reasons       map[string]int
}

// PathFor returns the summary location for an output file.
func PathFor(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + "_summary.csv"
}

// Aggregate reads output rows (header first, columns id, year, text, score,
// reason) and groups them in first-seen order.
func Aggregate(r io.Reader) ([]*Group, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var groups []*Group
	index := make(map[[2]string]*Group)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("row %d: expected 5 columns, got %d", line, len(rec))
		}
		score, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid score %q", line, rec[3])
		}

		key := [2]string{rec[0], rec[1]}
		g, ok := index[key]
		if !ok {
			g = &Group{ID: rec[0], Year: rec[1], reasons: make(map[string]int)}
			index[key] = g
			groups = append(groups, g)
		}
		g.ScoreSum += score
		g.Rows++
		if score != 0 {
			g.RelevantRows++
		}
		g.reasons[rec[4]]++
	}

	for _, g := range groups {
		g.TypicalReason = mode(g.reasons)
	}
	return groups, nil
}

// mode returns the most frequent reason; ties go to the smallest string.
func mode(counts map[string]int) string {
	best, bestN := "", 0
	for reason, n := range counts {
		if n > bestN || (n == bestN && reason < best) {
			best, bestN = reason, n
		}
	}
	return best
}

// Write renders groups as CSV.
func Write(w io.Writer, groups []*Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, g := range groups {
		if err := cw.Write([]string{
			g.ID,
			g.Year,
			strconv.Itoa(g.ScoreSum),
			strconv.Itoa(g.Rows),
			strconv.Itoa(g.RelevantRows),
			g.TypicalReason,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summarize aggregates outputPath and writes the summary next to it.
// It returns the summary path and the number of groups.
func Summarize(fs afero.Fs, outputPath string) (string, int, error) {
	in, err := fs.Open(outputPath)
	if err != nil {
		return "", 0, fmt.Errorf("open output: %w", err)
	}
	defer in.Close()

	groups, err := Aggregate(in)
	if err != nil {
		return "", 0, fmt.Errorf("aggregate %s: %w", outputPath, err)
	}

	path := PathFor(outputPath)
	out, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create summary: %w", err)
	}
	if err := Write(out, groups); err != nil {
		_ = out.Close()
		return "", 0, fmt.Errorf("write summary: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("close summary: %w", err)
	}
	return path, len(groups), nil
}
