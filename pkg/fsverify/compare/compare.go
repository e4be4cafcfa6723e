// Package compare cross-checks forensic records against OS records one
// attribute at a time and reports the symmetric difference of each check.
package compare

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// InodeInspector returns the raw istat output for an inode. On failure it
// returns whatever output was captured along with the error.
type InodeInspector interface {
	Inspect(ctx context.Context, inode uint64) ([]byte, error)
}

// InspectorFunc adapts a function to InodeInspector.
type InspectorFunc func(ctx context.Context, inode uint64) ([]byte, error)

// Inspect calls f.
func (f InspectorFunc) Inspect(ctx context.Context, inode uint64) ([]byte, error) {
	return f(ctx, inode)
}

// Comparator checks two immutable record collections for one image.
// It is safe for concurrent use.
type Comparator struct {
	forensic  record.Records
	os        record.Records
	policy    normalize.Policy
	inspector InodeInspector
	logger    *logging.Logger
}

// Option is a functional option for configuring a Comparator.
type Option func(*Comparator)

// WithPolicy sets the normalization policy used by the size check.
func WithPolicy(p normalize.Policy) Option {
	return func(c *Comparator) {
		c.policy = p
	}
}

// WithInspector makes the inode check take forensic inode numbers from
// the inspector instead of the file listing.
func WithInspector(i InodeInspector) Option {
	return func(c *Comparator) {
		c.inspector = i
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Comparator) {
		c.logger = l
	}
}

// New creates a Comparator over forensic and OS records.
// The default policy is normalize.DefaultPolicy().
func New(forensic, os record.Records, opts ...Option) *Comparator {
	c := &Comparator{
		forensic: forensic,
		os:       os,
		policy:   normalize.DefaultPolicy(),
		logger:   logging.Get("compare"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the verdict of one attribute check.
type Result struct {
	Attribute    record.Attribute
	Pass         bool
	OnlyForensic []Pair
	OnlyOS       []Pair

	// Err is set when the check could not run to completion.
	Err error
}

// Mismatch returns the failure as an error, or nil for a passing check.
func (r Result) Mismatch() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Pass {
		return nil
	}
	return &MismatchError{Attribute: r.Attribute, OnlyForensic: r.OnlyForensic, OnlyOS: r.OnlyOS}
}

// Check compares both collections on attr.
func (c *Comparator) Check(ctx context.Context, attr record.Attribute) Result {
	result := Result{Attribute: attr}

	var forensic Set
	if attr == record.AttrInode && c.inspector != nil {
		var err error
		if forensic, err = c.inspectedInodes(ctx); err != nil {
			result.Err = err
			return result
		}
	} else {
		forensic = Project(c.forensic, attr)
	}

	osRecords := c.os
	if attr == record.AttrSize {
		// Parsing already applied the policy's filters, so Apply only
		// zeroes pseudo entry sizes here.
		osRecords = c.policy.Apply(osRecords)
	}
	os := Project(osRecords, attr)

	result.OnlyForensic = forensic.Minus(os)
	result.OnlyOS = os.Minus(forensic)
	result.Pass = len(result.OnlyForensic) == 0 && len(result.OnlyOS) == 0

	c.logger.Debug("attribute checked", "attr", attr, "pass", result.Pass,
		"only_forensic", len(result.OnlyForensic), "only_os", len(result.OnlyOS))
	return result
}

// inspectedInodes projects forensic paths onto the inode istat reports.
// An inspector failure does not stop the check: the captured output is
// parsed anyway and an unparseable answer becomes a "!error" value.
func (c *Comparator) inspectedInodes(ctx context.Context) (Set, error) {
	s := make(Set, len(c.forensic))
	for _, r := range c.forensic {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := c.inspector.Inspect(ctx, r.Inode)
		if err != nil {
			c.logger.Debug("inode inspection failed", "inode", r.Inode, "path", r.Path, "error", err)
		}

		var value string
		if inode, perr := normalize.ParseIstat(out); perr != nil {
			value = "!" + perr.Error()
		} else {
			value = strconv.FormatUint(inode, 10)
		}
		s[Pair{Path: r.Path, Value: value}] = struct{}{}
	}
	return s, nil
}

// Report holds the results of several attribute checks in request order.
type Report struct {
	Results []Result
}

// Passed reports whether every check passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Pass || res.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Pass || res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins the failures into one error, nil when all checks passed.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failures() {
		errs = append(errs, res.Mismatch())
	}
	return errors.Join(errs...)
}

// CheckAll runs the checks for attrs concurrently. With no attrs it checks
// every attribute.
func (c *Comparator) CheckAll(ctx context.Context, attrs ...record.Attribute) Report {
	if len(attrs) == 0 {
		attrs = record.AllAttributes()
	}

	results := make([]Result, len(attrs))
	var wg sync.WaitGroup
	for i, attr := range attrs {
		wg.Add(1)
		go func(i int, attr record.Attribute) {
			defer wg.Done()
			results[i] = c.Check(ctx, attr)
		}(i, attr)
	}
	wg.Wait()

	return Report{Results: results}
}
