package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// summaryRows returns one row per image: name, status and the failed checks.
func summaryRows(r *Result) [][3]string {
	rows := make([][3]string, 0, len(r.Images))
	for _, img := range r.Images {
		status := "PASS"
		var detail []string
		switch {
		case img.Error != "":
			status = "ERROR"
			detail = append(detail, oneLine(img.Error))
		case !img.Pass:
			status = "FAIL"
			for _, c := range img.Failures() {
				detail = append(detail, c.Name)
			}
		}
		rows = append(rows, [3]string{img.Name, status, strings.Join(detail, ",")})
	}
	return rows
}

// TSVFormatter formats a per-image summary as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("IMAGE\tRESULT\tFAILED\n")
	for _, row := range summaryRows(r) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row[0], row[1], strings.ReplaceAll(row[2], "\t", " "))
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

// Ensure TSVFormatter implements Formatter.
var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats a per-image summary as comma-separated values.
// It uses encoding/csv for RFC 4180 compliant output.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"IMAGE", "RESULT", "FAILED"}); err != nil {
		return err
	}
	for _, row := range summaryRows(r) {
		if err := writer.Write(row[:]); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats a per-image summary as a GitHub-flavored
// Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| IMAGE | RESULT | FAILED |\n")
	w.WriteString("|-------|--------|--------|\n")
	for _, row := range summaryRows(r) {
		fmt.Fprintf(w, "| %s | %s | %s |\n",
			escapeMarkdownPipe(row[0]), row[1], escapeMarkdownPipe(row[2]))
	}
	return nil
}

// escapeMarkdownPipe escapes pipe characters in a string for Markdown tables.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

// Ensure MarkdownFormatter implements Formatter.
var _ Formatter = (*MarkdownFormatter)(nil)
