package related

import (
	"fmt"
	"path/filepath"

	"relfiles/internal/coupling"
	"relfiles/internal/paths"
)

// FileView is one related file as shown to a user.
type FileView struct {
	Path        string `json:"path"`
	Label       string `json:"label"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// Views turns ranked candidates into display entries. Labels are base names,
// except where two entries share a base name; those use the
// workspace-relative path instead.
func Views(workspace string, files []coupling.Candidate) []FileView {
	bases := make(map[string]int, len(files))
	for _, f := range files {
		bases[filepath.Base(f.Path)]++
	}

	views := make([]FileView, 0, len(files))
	for _, f := range files {
		label := filepath.Base(f.Path)
		if bases[label] > 1 {
			if rel, ok := paths.RelativeSlash(workspace, f.Path); ok {
				label = rel
			}
		}
		views = append(views, FileView{
			Path:        f.Path,
			Label:       label,
			Count:       f.Count,
			Description: Describe(f.Count),
		})
	}
	return views
}

// Describe renders a co-change count: "1 commit", "3 commits".
func Describe(count int) string {
	if count == 1 {
		return "1 commit"
	}
	return fmt.Sprintf("%d commits", count)
}
