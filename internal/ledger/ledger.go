// Package ledger persists the content-hash deduplication record that keeps
// an already-exported prompt from being emitted twice across runs.
package ledger

import (
	"crypto/md5" // #nosec G401 -- fingerprint only, must stay compatible with existing ledger files
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// FileName is the ledger file under the save root.
const FileName = "processed_prompts.json"

const backupStamp = "20060102150405"

// ContentID returns the deterministic fingerprint of a prompt's text.
// Identical text always yields the same id.
func ContentID(text string) string {
	sum := md5.Sum([]byte(text)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// Ledger maps prompt content ids to the date they were first exported,
// formatted YYYY-MM-DD. Entries are never removed; membership alone decides
// whether a prompt is skipped, regardless of the recorded date.
type Ledger struct {
	entries map[string]string
}

// Load reads the ledger under saveRoot. A missing file yields an empty
// ledger. A corrupt file is renamed to <name>.bak.<timestamp> so nothing is
// silently lost, and an empty ledger is returned; Load never fails.
func Load(saveRoot string, logger zerolog.Logger) *Ledger {
	path := filepath.Join(saveRoot, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Ledger not readable, starting empty")
		}
		return &Ledger{entries: make(map[string]string)}
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format(backupStamp))
		if renameErr := os.Rename(path, backup); renameErr != nil {
			logger.Error().Err(renameErr).Str("path", path).Msg("Failed to back up corrupt ledger")
		} else {
			logger.Warn().Err(err).Str("backup", backup).Msg("Corrupt ledger backed up, starting empty")
		}
		return &Ledger{entries: make(map[string]string)}
	}

	return &Ledger{entries: entries}
}

// Has reports whether the content id was already exported in some prior run.
func (l *Ledger) Has(id string) bool {
	_, ok := l.entries[id]
	return ok
}

// Add records a content id with its first-seen date. Existing entries are
// left untouched.
func (l *Ledger) Add(id, date string) {
	if _, ok := l.entries[id]; ok {
		return
	}
	l.entries[id] = date
}

// Len returns the number of recorded content ids.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Save writes the ledger atomically: the mapping goes to a temp file in the
// same directory first, then replaces the target, so a crash can never leave
// a truncated ledger behind. On failure any existing file is renamed to
// <name>.error.<timestamp> before giving up; the failure is logged and
// returned, but callers treat it as non-fatal — the merge writer's row-level
// dedup is the second line of defense.
func (l *Ledger) Save(saveRoot string, logger zerolog.Logger) error {
	if err := os.MkdirAll(saveRoot, 0o750); err != nil {
		return fmt.Errorf("ledger: create save root: %w", err)
	}
	path := filepath.Join(saveRoot, FileName)

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}

	tmp, err := os.CreateTemp(saveRoot, FileName+".tmp-*")
	if err != nil {
		l.quarantine(path, logger)
		return fmt.Errorf("ledger: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		l.quarantine(path, logger)
		return fmt.Errorf("ledger: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		l.quarantine(path, logger)
		return fmt.Errorf("ledger: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		l.quarantine(path, logger)
		return fmt.Errorf("ledger: replace %s: %w", path, err)
	}

	logger.Info().Int("entries", len(l.entries)).Msg("Ledger saved")
	return nil
}

// quarantine renames an existing ledger file aside after a failed save so a
// possibly-inconsistent file is never left in place unnoticed.
func (l *Ledger) quarantine(path string, logger zerolog.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	backup := fmt.Sprintf("%s.error.%s", path, time.Now().Format(backupStamp))
	if err := os.Rename(path, backup); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to quarantine ledger after save error")
		return
	}
	logger.Warn().Str("backup", backup).Msg("Ledger quarantined after save error")
}
