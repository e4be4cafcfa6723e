package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if len(r.Images) == 0 {
		w.WriteString(MutedStyle.Render("  No images validated"))
		w.WriteString("\n")
	}
	for _, img := range r.Images {
		w.WriteString(f.formatImage(img))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Images:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Images)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Duration:"), ValueStyle.Render(formatDuration(r.Duration))),
	}
	if r.RunID != "" {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Run:"), MutedStyle.Render(r.RunID)))
	}
	lines = append(lines, strings.Join(parts, "  "))

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Validation interrupted"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatImage(img ImageResult) string {
	var sb strings.Builder

	status := SuccessStyle.Render("PASS")
	switch {
	case img.Error != "":
		status = ErrorStyle.Bold(true).Render("ERROR")
	case !img.Pass:
		status = ErrorStyle.Bold(true).Render("FAIL")
	}
	sb.WriteString(fmt.Sprintf("%s %s %s\n", status, TitleStyle.Render(img.Name),
		MutedStyle.Render(fmt.Sprintf("(%s, %s forensic / %s os records, %s files)",
			formatDuration(img.Duration),
			humanize.Comma(int64(img.ForensicRecords)),
			humanize.Comma(int64(img.OSRecords)),
			humanize.Comma(int64(img.Files))))))

	if img.Error != "" {
		sb.WriteString(ErrorStyle.Render("  " + img.Error))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, c := range img.Checks {
		if c.Pass && c.Error == "" {
			sb.WriteString(fmt.Sprintf("  %s %s\n", SuccessStyle.Render("✓"), c.Name))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", ErrorStyle.Render("✗"), ErrorStyle.Render(c.Name)))
		if c.Error != "" {
			for _, line := range strings.Split(c.Error, "\n") {
				sb.WriteString(ErrorStyle.Render("      " + line))
				sb.WriteString("\n")
			}
		}
		writePairs(&sb, "forensic only", c.OnlyForensic)
		writePairs(&sb, "os only", c.OnlyOS)
	}
	return sb.String()
}

func writePairs(sb *strings.Builder, label string, pairs []string) {
	if len(pairs) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("      %s\n", LabelStyle.Render(fmt.Sprintf("%s (%d):", label, len(pairs)))))
	for _, p := range pairs {
		sb.WriteString("        " + PathStyle.Render(p) + "\n")
	}
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	passed, failed, aborted := r.Counts()

	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Passed:"), SuccessStyle.Render(fmt.Sprintf("%d", passed))),
	}
	failedStyle := ValueStyle
	if failed > 0 {
		failedStyle = ErrorStyle
	}
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Failed:"), failedStyle.Render(fmt.Sprintf("%d", failed))))
	if aborted > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Errors:"), ErrorStyle.Render(fmt.Sprintf("%d", aborted))))
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d interface{ Seconds() float64 }) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
