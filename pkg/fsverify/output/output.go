// Package output provides formatters for validation reports in various
// output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.NewResult(outcomes, elapsed)); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/fsverify/pkg/fsverify/compare"
	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
)

// CheckResult is one check of one image, ready for display.
type CheckResult struct {
	Name string `json:"name" yaml:"name"`
	Pass bool   `json:"pass" yaml:"pass"`

	// OnlyForensic and OnlyOS hold the rendered "(path, value)" pairs of
	// the symmetric difference.
	OnlyForensic []string `json:"only_forensic,omitempty" yaml:"only_forensic,omitempty"`
	OnlyOS       []string `json:"only_os,omitempty" yaml:"only_os,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ImageResult is the report for one image.
type ImageResult struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string        `json:"image" yaml:"image"`
	Pass        bool          `json:"pass" yaml:"pass"`
	Checks      []CheckResult `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Error is set when the image was aborted before any check ran.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	Duration        time.Duration `json:"-" yaml:"-"`
	ForensicRecords int           `json:"forensic_records" yaml:"forensic_records"`
	OSRecords       int           `json:"os_records" yaml:"os_records"`
	Files           int           `json:"files" yaml:"files"`
	InodeDuplicates int           `json:"inode_duplicates,omitempty" yaml:"inode_duplicates,omitempty"`
}

// Failures returns the failed checks.
func (r ImageResult) Failures() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Pass || c.Error != "" {
			failed = append(failed, c)
		}
	}
	return failed
}

// Result contains the complete report data for formatting.
type Result struct {
	Images []ImageResult

	// Duration is the wall time of the whole run.
	Duration time.Duration

	// RunID is the history entry the run was recorded under, if any.
	RunID string

	// Warnings contains messages that do not fail an image.
	Warnings []string

	// Interrupted indicates the run was cancelled before every image was
	// validated.
	Interrupted bool
}

// Counts returns the number of passed, failed and aborted images.
func (r *Result) Counts() (passed, failed, aborted int) {
	for _, img := range r.Images {
		switch {
		case img.Error != "":
			aborted++
		case img.Pass:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, aborted
}

// Passed reports whether every image passed and the run was not cut short.
func (r *Result) Passed() bool {
	_, failed, aborted := r.Counts()
	return failed == 0 && aborted == 0 && !r.Interrupted
}

// NewImageResult converts a validation outcome for display.
func NewImageResult(o *image.Outcome) ImageResult {
	res := ImageResult{
		Name:            o.Descriptor.Name,
		Description:     o.Descriptor.Description,
		Image:           o.Descriptor.Image,
		Pass:            o.Passed(),
		Duration:        o.Duration,
		ForensicRecords: o.ForensicRecords,
		OSRecords:       o.OSRecords,
		Files:           o.Files,
		InodeDuplicates: o.InodeDuplicates,
	}
	if o.Err != nil {
		res.Error = o.Err.Error()
	}
	for _, c := range o.Checks {
		cr := CheckResult{
			Name:         c.Name,
			Pass:         c.Pass,
			OnlyForensic: renderPairs(c.OnlyForensic),
			OnlyOS:       renderPairs(c.OnlyOS),
		}
		if c.Err != nil {
			cr.Error = c.Err.Error()
		}
		res.Checks = append(res.Checks, cr)
	}
	return res
}

// NewResult converts the outcomes of a run for display.
func NewResult(outcomes []*image.Outcome, duration time.Duration) *Result {
	r := &Result{Duration: duration, Images: make([]ImageResult, 0, len(outcomes))}
	for _, o := range outcomes {
		r.Images = append(r.Images, NewImageResult(o))
		if o.InodeDuplicates > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"%s: %d duplicate inode listing lines, the last line for each inode was used",
				o.Descriptor.Name, o.InodeDuplicates))
		}
	}
	return r
}

func renderPairs(pairs []compare.Pair) []string {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.String()
	}
	return out
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
