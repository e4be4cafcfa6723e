package output

import (
	"bytes"
	"encoding/json"
	"time"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Images  []documentImage `json:"images" yaml:"images"`
	Summary documentSummary `json:"summary" yaml:"summary"`
}

type documentImage struct {
	ImageResult `yaml:",inline"`
	Duration    string `json:"duration" yaml:"duration"`
}

type documentSummary struct {
	Images      int      `json:"images" yaml:"images"`
	Passed      int      `json:"passed" yaml:"passed"`
	Failed      int      `json:"failed" yaml:"failed"`
	Aborted     int      `json:"aborted" yaml:"aborted"`
	Pass        bool     `json:"pass" yaml:"pass"`
	Duration    string   `json:"duration" yaml:"duration"`
	RunID       string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted" yaml:"interrupted"`
}

func buildDocument(r *Result) document {
	images := make([]documentImage, len(r.Images))
	for i, img := range r.Images {
		images[i] = documentImage{ImageResult: img, Duration: formatDurationString(img.Duration)}
	}

	passed, failed, aborted := r.Counts()
	return document{
		Images: images,
		Summary: documentSummary{
			Images:      len(r.Images),
			Passed:      passed,
			Failed:      failed,
			Aborted:     aborted,
			Pass:        r.Passed(),
			Duration:    formatDurationString(r.Duration),
			RunID:       r.RunID,
			Warnings:    r.Warnings,
			Interrupted: r.Interrupted,
		},
	}
}

// formatDurationString formats a duration as a string for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter formats output as a single indented JSON object
// with images and summary sections.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// jsonlCheck is one line of JSONL output.
type jsonlCheck struct {
	Image        string   `json:"image"`
	Check        string   `json:"check,omitempty"`
	Pass         bool     `json:"pass"`
	OnlyForensic []string `json:"only_forensic,omitempty"`
	OnlyOS       []string `json:"only_os,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// JSONLFormatter formats output as newline-delimited JSON with one object
// per check. An aborted image is a single object without a check name.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, img := range r.Images {
		lines := []jsonlCheck{{Image: img.Name, Error: img.Error}}
		if img.Error == "" {
			lines = lines[:0]
			for _, c := range img.Checks {
				lines = append(lines, jsonlCheck{
					Image:        img.Name,
					Check:        c.Name,
					Pass:         c.Pass && c.Error == "",
					OnlyForensic: c.OnlyForensic,
					OnlyOS:       c.OnlyOS,
					Error:        c.Error,
				})
			}
		}
		for _, line := range lines {
			data, err := json.Marshal(line)
			if err != nil {
				return err
			}
			w.Write(data)
			w.WriteByte('\n')
		}
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
