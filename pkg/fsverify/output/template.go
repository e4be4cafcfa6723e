package output

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter formats output using a custom Go text/template.
// The template receives the Result; PassCount, FailCount and ErrorCount
// are provided as computed fields.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

type templateData struct {
	*Result
	PassCount  int
	FailCount  int
	ErrorCount int
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{duration .Duration}}
		"duration": func(d time.Duration) string {
			return formatDuration(d)
		},

		// Usage: {{comma .ForensicRecords}}
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},

		// Usage: {{join .OnlyOS ", "}}
		"join": strings.Join,
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	passed, failed, aborted := r.Counts()
	return f.template.Execute(w, templateData{Result: r, PassCount: passed, FailCount: failed, ErrorCount: aborted})
}

const defaultTemplate = `{{range .Images}}{{.Name}}	{{if .Error}}ERROR{{else if .Pass}}PASS{{else}}FAIL{{end}}
{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

// Ensure TemplateFormatter implements Formatter.
var _ Formatter = (*TemplateFormatter)(nil)
