// Package workspace discovers editor workspace storage directories and
// resolves human-readable project names for them.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/thebtf/promptvault/pkg/models"
)

// StoreFileName is the embedded key-value store file inside each workspace
// storage directory.
const StoreFileName = "state.vscdb"

// Scan lists the immediate subdirectories of root that contain a store file.
// A missing root or a listing failure is logged and yields an empty list;
// the caller treats "no workspaces" as a normal outcome.
func Scan(root string, logger zerolog.Logger) []models.WorkspaceEntry {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn().Err(err).Str("root", root).Msg("Workspace root not readable")
		return nil
	}

	var found []models.WorkspaceEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		storePath := filepath.Join(dir, StoreFileName)
		if _, err := os.Stat(storePath); err != nil {
			continue
		}
		found = append(found, models.WorkspaceEntry{Path: dir, StorePath: storePath})
	}

	logger.Info().Int("count", len(found)).Str("root", root).Msg("Workspaces discovered")
	return found
}
