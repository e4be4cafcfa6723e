package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// PlainFormatter formats output as an aligned table with one row per check.
// A failed check is followed by one row per differing pair, labelled with
// the side that reported it. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("IMAGE\tCHECK\tRESULT\tDETAIL\n")); err != nil {
		return err
	}

	for _, img := range r.Images {
		if img.Error != "" {
			if _, err := fmt.Fprintf(tw, "%s\t-\tERROR\t%s\n", img.Name, oneLine(img.Error)); err != nil {
				return err
			}
			continue
		}
		for _, c := range img.Checks {
			if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", img.Name, c.Name, checkStatus(c), checkDetail(c)); err != nil {
				return err
			}
			if err := writePairRows(tw, img.Name, c.Name, "forensic_only", c.OnlyForensic); err != nil {
				return err
			}
			if err := writePairRows(tw, img.Name, c.Name, "os_only", c.OnlyOS); err != nil {
				return err
			}
		}
	}

	return tw.Flush()
}

func writePairRows(w io.Writer, image, check, side string, pairs []string) error {
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", image, check, side, p); err != nil {
			return err
		}
	}
	return nil
}

func checkStatus(c CheckResult) string {
	switch {
	case c.Error != "":
		return "ERROR"
	case c.Pass:
		return "PASS"
	default:
		return "FAIL"
	}
}

func checkDetail(c CheckResult) string {
	if c.Error != "" {
		return oneLine(c.Error)
	}
	if c.Pass {
		return "-"
	}
	return fmt.Sprintf("forensic_only=%d os_only=%d", len(c.OnlyForensic), len(c.OnlyOS))
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
