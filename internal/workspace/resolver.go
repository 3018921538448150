package workspace

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

const (
	selectedRootKey = "debug.selectedroot"
	editorLayoutKey = "memento/editorpart"
)

// configFileNames are generic editor config filenames that can never be a
// project name. A selected-root value ending in one of these points at a
// config file, not the project directory.
var configFileNames = map[string]bool{
	"launch.json":   true,
	"settings.json": true,
}

// resourcePathRe matches embedded resource paths inside the editor layout blob.
var resourcePathRe = regexp.MustCompile(`"resource":\{"path":"([^"]+)"`)

// invalidNameRunes matches every rune that is not alphanumeric, Hangul,
// whitespace, hyphen, or underscore.
var invalidNameRunes = regexp.MustCompile(`[^0-9A-Za-z가-힣\s_-]`)

// ValueReader reads a single value from a workspace's key-value store.
// The second return reports whether the key was present.
type ValueReader interface {
	Value(key string) (string, bool, error)
}

// nameStrategy derives a candidate project name from stored state.
// It returns false when the strategy cannot produce a usable name.
type nameStrategy func(vals ValueReader) (string, bool)

var nameStrategies = []nameStrategy{
	fromSelectedRoot,
	fromEditorLayout,
}

// ResolveProjectName returns a best-effort project name for a workspace.
// It runs the stored-state strategies in order, sanitizes the first hit, and
// falls back to the workspace directory's own name. Every failure degrades to
// the next step; the directory-name fallback always succeeds.
func ResolveProjectName(dir string, vals ValueReader, logger zerolog.Logger) string {
	for _, strategy := range nameStrategies {
		name, ok := strategy(vals)
		if !ok {
			continue
		}
		if clean := sanitizeName(name); clean != "" {
			logger.Debug().Str("project", clean).Msg("Project name resolved from store")
			return clean
		}
	}

	fallback := filepath.Base(dir)
	logger.Debug().Str("project", fallback).Msg("Project name fell back to workspace directory name")
	return fallback
}

// fromSelectedRoot derives the project name from the stored selected-root URI.
func fromSelectedRoot(vals ValueReader) (string, bool) {
	raw, ok, err := vals.Value(selectedRootKey)
	if err != nil || !ok || raw == "" {
		return "", false
	}

	p := raw
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.TrimPrefix(p, "file://")
	p = strings.TrimSuffix(p, "/.vscode/launch.json")

	name := path.Base(p)
	if name == "" || name == "." || name == "/" || configFileNames[name] {
		return "", false
	}
	return name, true
}

// fromEditorLayout scans the editor layout blob for embedded resource paths
// and takes the first path segment of the first match.
func fromEditorLayout(vals ValueReader) (string, bool) {
	raw, ok, err := vals.Value(editorLayoutKey)
	if err != nil || !ok || raw == "" {
		return "", false
	}

	m := resourcePathRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	for _, segment := range strings.Split(m[1], "/") {
		if segment != "" {
			return segment, true
		}
	}
	return "", false
}

// sanitizeName replaces filesystem-hostile runes with underscores and trims
// surrounding whitespace.
func sanitizeName(name string) string {
	return strings.TrimSpace(invalidNameRunes.ReplaceAllString(name, "_"))
}
