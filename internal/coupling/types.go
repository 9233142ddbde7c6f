// Package coupling finds the files that historically change together with a
// given file, based on git commit history.
package coupling

// DefaultMaxCount is the result limit used when none is configured.
const DefaultMaxCount = 25

// Candidate is a file that changed in the same commits as the query file.
type Candidate struct {
	// Path is absolute.
	Path string `json:"path"`
	// Count is the number of commits that touched both files; always >= 1.
	Count int `json:"count"`
}

// Settings supplies the tuning read at the start of every computation.
type Settings interface {
	IgnoreGlobs() []string
	MaxCount() int
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Globs []string
	Max   int
}

// IgnoreGlobs implements Settings.
func (s StaticSettings) IgnoreGlobs() []string { return s.Globs }

// MaxCount implements Settings.
func (s StaticSettings) MaxCount() int { return s.Max }
