// Package pipeline sequences the extraction run: scan workspaces, read each
// store, drop already-ledgered and stale prompts, persist the ledger, and
// merge the remainder into per-project table files.
//
// The same-day capture window is intentional and narrow: a prompt whose store
// was last modified on an earlier day is skipped even if it was never seen
// before. Prior days are assumed handled by a prior run; the trade-off favors
// never backfilling duplicates over completeness.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/promptvault/internal/export"
	"github.com/thebtf/promptvault/internal/ledger"
	"github.com/thebtf/promptvault/internal/store"
	"github.com/thebtf/promptvault/internal/workspace"
	"github.com/thebtf/promptvault/pkg/models"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Runner executes extraction runs. The ledger and the project tables carry no
// file locking, so Runner collapses concurrent calls against the same save
// root into a single run; late callers receive the in-flight run's result.
type Runner struct {
	logger zerolog.Logger
	writer *export.Writer
	group  singleflight.Group
}

// New creates a Runner reporting through logger.
func New(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logger,
		writer: export.NewWriter(logger),
	}
}

// Extract runs the pipeline once and returns the paths of every file written.
// It is idempotent with respect to already-ledgered content: a second run over
// unchanged stores writes nothing. Per-workspace failures are logged and do
// not abort the remaining workspaces; the only returned error is an unusable
// save root.
func (r *Runner) Extract(ctx context.Context, workspaceRoot, saveRoot string) ([]string, error) {
	v, err, _ := r.group.Do(filepath.Clean(saveRoot), func() (any, error) {
		return r.run(ctx, workspaceRoot, saveRoot)
	})
	files, _ := v.([]string)
	return files, err
}

func (r *Runner) run(ctx context.Context, workspaceRoot, saveRoot string) ([]string, error) {
	runID := uuid.NewString()[:8]
	logger := r.logger.With().Str("run", runID).Logger()
	logger.Info().Str("workspace_root", workspaceRoot).Str("save_root", saveRoot).Msg("Extraction started")

	if err := os.MkdirAll(saveRoot, 0o750); err != nil {
		return nil, fmt.Errorf("pipeline: create save root: %w", err)
	}

	led := ledger.Load(saveRoot, logger)
	logger.Info().Int("entries", led.Len()).Msg("Ledger loaded")

	entries := workspace.Scan(workspaceRoot, logger)
	if len(entries) == 0 {
		logger.Warn().Msg("No workspaces to process")
		return nil, nil
	}

	var files []string
	for _, ws := range entries {
		if ctx.Err() != nil {
			logger.Warn().Msg("Run interrupted, ledger state from completed workspaces is durable")
			break
		}

		wsLogger := logger.With().Str("workspace", filepath.Base(ws.Path)).Logger()
		path, err := r.processWorkspace(ws, led, saveRoot, wsLogger)
		if err != nil {
			wsLogger.Error().Err(err).Msg("Workspace failed, continuing with the rest")
			continue
		}
		if path != "" {
			files = append(files, path)
		}
	}

	logger.Info().Int("files", len(files)).Msg("Extraction finished")
	return files, nil
}

// processWorkspace extracts one workspace's store into its project table and
// returns the written path, or "" when the workspace produced no new rows.
func (r *Runner) processWorkspace(ws models.WorkspaceEntry, led *ledger.Ledger, saveRoot string, logger zerolog.Logger) (string, error) {
	st, err := store.Open(ws.StorePath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	if tables, err := st.Tables(); err == nil {
		logger.Debug().Strs("tables", tables).Msg("Store opened")
	}

	project := workspace.ResolveProjectName(ws.Path, st, logger)

	texts, err := st.Prompts()
	if err != nil {
		logger.Warn().Err(err).Msg("Prompt collection unreadable, treating workspace as empty")
		texts = nil
	}
	if len(texts) == 0 {
		logger.Warn().Str("project", project).Msg("No prompts in store")
		return "", nil
	}
	logger.Info().Str("project", project).Int("prompts", len(texts)).Msg("Prompts loaded")

	captured := st.ModTime()
	capDate := captured.Format("2006-01-02")
	capTime := captured.Format("15:04:05")
	today := timeNow().Format("2006-01-02")

	var rows []models.Row
	skippedLedger, skippedStale := 0, 0
	for _, text := range texts {
		id := ledger.ContentID(text)
		if led.Has(id) {
			skippedLedger++
			continue
		}
		if capDate != today {
			// Stale prompts are not ledgered: the same-day window alone
			// excludes them, today and on every later day.
			skippedStale++
			continue
		}
		rows = append(rows, models.Row{Date: capDate, Time: capTime, Prompt: text})
		led.Add(id, today)
	}

	logger.Info().
		Int("accepted", len(rows)).
		Int("already_ledgered", skippedLedger).
		Int("stale", skippedStale).
		Msg("Prompts filtered")

	// Persist before writing the table: a later workspace's failure, or a
	// table write failure, must not undo this workspace's dedup state.
	if len(rows) > 0 {
		if err := led.Save(saveRoot, logger); err != nil {
			logger.Warn().Err(err).Msg("Ledger save failed, table-level dedup remains as backstop")
		}
	}

	if len(rows) == 0 {
		return "", nil
	}
	return r.writer.Write(project, rows, saveRoot)
}

// BuildReport condenses a finished run into the terminal result handed to
// front ends.
func BuildReport(files []string, err error) models.Report {
	if err != nil {
		return models.Report{Success: false, Message: fmt.Sprintf("extraction failed: %v", err)}
	}
	if len(files) == 0 {
		return models.Report{Success: false, Message: "no files were written"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) written:\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	return models.Report{Success: true, Message: b.String(), Files: files}
}
