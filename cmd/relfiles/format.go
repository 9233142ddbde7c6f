package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"relfiles/internal/paths"
	"relfiles/internal/related"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// RelatedResponse is the output of `relfiles related`.
type RelatedResponse struct {
	Workspace string             `json:"workspace"`
	File      string             `json:"file"`
	Files     []related.FileView `json:"files"`
}

// FormatResponse formats a response according to the specified format.
// styled enables terminal colors for the human format.
func FormatResponse(resp interface{}, format OutputFormat, styled bool) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp, styled)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}, styled bool) (string, error) {
	switch v := resp.(type) {
	case *RelatedResponse:
		return formatRelatedHuman(v, styled), nil
	default:
		return formatJSON(resp)
	}
}

func formatRelatedHuman(resp *RelatedResponse, styled bool) string {
	var b strings.Builder

	title := "Related files for " + displayPath(resp.Workspace, resp.File)
	if styled {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	b.WriteString(title + "\n")

	if len(resp.Files) == 0 {
		b.WriteString("  (no related files)\n")
		return b.String()
	}

	rows := make([][]string, 0, len(resp.Files))
	for i, f := range resp.Files {
		rows = append(rows, []string{strconv.Itoa(i + 1), f.Label, f.Description, displayPath(resp.Workspace, f.Path)})
	}

	if !styled {
		for _, r := range rows {
			fmt.Fprintf(&b, "  %2s. %-30s %-12s %s\n", r[0], r[1], r[2], r[3])
		}
		return b.String()
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	t := table.New().
		Headers("#", "FILE", "CO-CHANGES", "PATH").
		Rows(rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(dim).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			if col == 3 {
				return dim.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

// displayPath shows path relative to workspace when it lies inside it.
func displayPath(workspace, path string) string {
	if rel, ok := paths.RelativeSlash(workspace, path); ok && workspace != "" {
		return rel
	}
	return path
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
