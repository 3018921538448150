// Package export merges accepted prompt rows into per-project spreadsheet
// files, falling back to plain CSV when the spreadsheet writer fails.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/thebtf/promptvault/pkg/models"
)

const (
	primaryExt  = ".xlsx"
	fallbackExt = ".csv"
)

// columns is the fixed column set of a project table, in order.
var columns = [3]string{"date", "time", "prompt"}

// writeWorkbook is a package-level var to allow test injection of primary
// write failures.
var writeWorkbook = writeWorkbookFile

// Writer merges rows into per-project table files under a save root.
type Writer struct {
	logger zerolog.Logger
}

// NewWriter creates a Writer that reports through logger.
func NewWriter(logger zerolog.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write merges rows into <saveRoot>/<project>/<project>_<YYYYMMDD>_prompt.xlsx,
// creating the file if needed. The date component comes from the first row;
// all rows in one call share a date by construction. Existing rows are kept,
// exact duplicates on (date, time, prompt) are dropped, and the result is
// sorted ascending by (date, time). If the spreadsheet write fails the same
// rows go to a CSV file at the same base path and that path is returned
// instead. Zero rows is not an error: it is logged and skipped, returning "".
func (w *Writer) Write(project string, rows []models.Row, saveRoot string) (string, error) {
	if len(rows) == 0 {
		w.logger.Warn().Str("project", project).Msg("No rows to write, skipping file")
		return "", nil
	}

	rows = sanitizeRows(rows)

	dir := filepath.Join(saveRoot, project)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("export: create project folder: %w", err)
	}

	dateCompact := strings.ReplaceAll(rows[0].Date, "-", "")
	base := fmt.Sprintf("%s_%s_prompt", project, dateCompact)
	target := filepath.Join(dir, base+primaryExt)

	existing := w.loadExisting(target)
	merged := mergeRows(existing, rows)

	if err := writeWorkbook(target, merged); err != nil {
		w.logger.Error().Err(err).Str("path", target).Msg("Spreadsheet write failed, falling back to CSV")
		csvPath := filepath.Join(dir, base+fallbackExt)
		if csvErr := writeCSVFile(csvPath, merged); csvErr != nil {
			return "", fmt.Errorf("export: fallback write: %w (after %v)", csvErr, err)
		}
		w.logger.Info().Str("path", csvPath).Int("rows", len(merged)).Msg("Rows written to CSV fallback")
		return csvPath, nil
	}

	w.logger.Info().Str("path", target).Int("rows", len(merged)).Msg("Rows written")
	return target, nil
}

// loadExisting reads the current rows of a target file. A missing file yields
// nil. An unreadable file is renamed aside to a timestamped backup and
// treated as empty, so a corrupted table never blocks the day's export and is
// never silently overwritten.
func (w *Writer) loadExisting(path string) []models.Row {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	rows, err := readWorkbookFile(path)
	if err != nil {
		backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102150405"))
		if renameErr := os.Rename(path, backup); renameErr != nil {
			w.logger.Error().Err(renameErr).Str("path", path).Msg("Failed to back up unreadable table")
		} else {
			w.logger.Warn().Err(err).Str("backup", backup).Msg("Unreadable table backed up, starting fresh")
		}
		return nil
	}
	return rows
}

// mergeRows concatenates existing and new rows, removes exact duplicates on
// the full (date, time, prompt) key, and sorts ascending by (date, time).
// This dedup is deliberately independent of the content-hash ledger: a
// rebuilt ledger must not reintroduce rows the table already holds.
func mergeRows(existing, fresh []models.Row) []models.Row {
	seen := make(map[models.Row]struct{}, len(existing)+len(fresh))
	merged := make([]models.Row, 0, len(existing)+len(fresh))
	for _, r := range append(append([]models.Row{}, existing...), fresh...) {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date < merged[j].Date
		}
		return merged[i].Time < merged[j].Time
	})
	return merged
}

// writeWorkbookFile writes rows to an xlsx file with the fixed header.
func writeWorkbookFile(path string, rows []models.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{columns[0], columns[1], columns[2]}); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{r.Date, r.Time, r.Prompt}); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}

// readWorkbookFile loads rows from an existing xlsx file and coerces its
// column set to exactly (date, time, prompt): missing columns read as empty,
// extra columns are dropped.
func readWorkbookFile(path string) ([]models.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// Map header names to column indexes; unknown headers are ignored.
	index := map[string]int{}
	for i, name := range raw[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cellAt := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rows := make([]models.Row, 0, len(raw)-1)
	for _, r := range raw[1:] {
		rows = append(rows, models.Row{
			Date:   cellAt(r, columns[0]),
			Time:   cellAt(r, columns[1]),
			Prompt: cellAt(r, columns[2]),
		})
	}
	return rows, nil
}

// writeCSVFile writes rows as UTF-8 CSV with a byte order mark so
// spreadsheet applications detect the encoding.
func writeCSVFile(path string, rows []models.Row) error {
	f, err := os.Create(path) // #nosec G304 -- path is built from the save root
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString("\uFEFF"); err != nil {
		return fmt.Errorf("export: write BOM: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(columns[:]); err != nil {
		return fmt.Errorf("export: write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Date, r.Time, r.Prompt}); err != nil {
			return fmt.Errorf("export: write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush CSV: %w", err)
	}
	return f.Close()
}
