// Package history persists one JSON record per validation run so earlier
// verdicts can be listed and compared.
package history

import "time"

// Entry is one persisted validation run.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Images    []ImageSummary `json:"images"`
	Summary   Summary        `json:"summary"`
}

// ImageSummary is the verdict for one image of a run.
type ImageSummary struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`

	// Failed lists the names of the failed checks.
	Failed []string `json:"failed,omitempty"`

	// Error is set when the image was aborted.
	Error string `json:"error,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Summary contains run totals.
type Summary struct {
	Images   int           `json:"images"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Aborted  int           `json:"aborted"`
	Duration time.Duration `json:"duration"`
}
