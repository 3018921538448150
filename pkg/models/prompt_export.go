// Package models contains domain models for promptvault.
package models

// WorkspaceEntry is one editor workspace storage directory discovered under
// the workspace root. StorePath points at the embedded state.vscdb file.
type WorkspaceEntry struct {
	Path      string `json:"path"`
	StorePath string `json:"store_path"`
}

// Row is one accepted prompt, normalized for the per-project table.
// Date and Time come from the store file's modification time, never from
// fields inside the prompt record itself.
type Row struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Prompt string `json:"prompt"`
}

// Report is the terminal result of one extraction run, handed to whatever
// front end (CLI, UI) invoked the pipeline.
type Report struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}
