package image

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jamesainslie/fsverify/pkg/fsverify/cache"
	"github.com/jamesainslie/fsverify/pkg/fsverify/compare"
	"github.com/jamesainslie/fsverify/pkg/fsverify/content"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Check names that are not attribute names.
const (
	CheckJoin      = "join"
	CheckStructure = "structure"
	CheckContent   = "content"
)

// ErrNoRecords indicates that neither source reported a single entry, which
// would otherwise pass every check vacuously.
var ErrNoRecords = errors.New("no records from either source")

var logger = logging.Get("image")

// Check is the verdict of one named check of an image.
type Check struct {
	Name string
	Pass bool

	// OnlyForensic holds pairs only the forensic side reported. For the
	// content check these are recovered files with no identical manifest
	// entry; for the join check, listed files missing from ils.
	OnlyForensic []compare.Pair

	// OnlyOS holds pairs only the OS side reported. For the content check
	// these are manifest entries with no identical recovered file.
	OnlyOS []compare.Pair

	// Err is set when the check could not run to completion.
	Err error
}

// Failed reports whether the check did not pass.
func (c Check) Failed() bool {
	return !c.Pass || c.Err != nil
}

// CheckName returns the name an attribute check is reported under.
func CheckName(attr record.Attribute) string {
	if attr == record.AttrPath {
		return CheckStructure
	}
	return attr.String()
}

// Outcome is the result of validating one image.
type Outcome struct {
	Descriptor Descriptor
	Checks     []Check

	// Report holds the attribute checks as the comparator returned them.
	// Their verdicts also appear in Checks.
	Report compare.Report

	// Err is set when the image could not be validated at all, for example
	// when a listing is missing or malformed. Checks is empty then.
	Err error

	Started  time.Time
	Duration time.Duration

	ForensicRecords int
	OSRecords       int

	// InodeDuplicates counts inode listing lines that replaced an earlier
	// line for the same inode.
	InodeDuplicates int

	// Files is the number of recovered files hashed by the content check.
	Files int
}

// Passed reports whether the image was validated and every check passed.
func (o *Outcome) Passed() bool {
	return o.Err == nil && len(o.Failures()) == 0
}

// Failures returns the failed checks.
func (o *Outcome) Failures() []Check {
	var failed []Check
	for _, c := range o.Checks {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Mismatch returns why the image failed, or nil when it passed. Failed
// attribute checks and a failed content check match compare.ErrMismatch;
// join failures match normalize.ErrJoin.
func (o *Outcome) Mismatch() error {
	if o.Err != nil {
		return o.Err
	}
	errs := []error{o.Report.Err()}
	for _, c := range o.Failures() {
		switch {
		case isAttributeCheck(c.Name):
			// Covered by the report.
		case c.Err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, c.Err))
		default:
			errs = append(errs, fmt.Errorf("%s: %d recovered only, %d manifest only: %w",
				c.Name, len(c.OnlyForensic), len(c.OnlyOS), compare.ErrMismatch))
		}
	}
	return errors.Join(errs...)
}

func isAttributeCheck(name string) bool {
	return name != CheckJoin && name != CheckContent
}

type validateOptions struct {
	attrs       []record.Attribute
	cache       *cache.Cache
	hashWorkers int
	content     bool
	inspect     bool
}

// Option configures Validate and Run.
type Option func(*validateOptions)

// WithAttributes restricts the attribute checks. The structure check is
// AttrPath.
func WithAttributes(attrs ...record.Attribute) Option {
	return func(o *validateOptions) {
		o.attrs = attrs
	}
}

// WithCache passes a digest cache to the content check.
func WithCache(c *cache.Cache) Option {
	return func(o *validateOptions) {
		o.cache = c
	}
}

// WithHashWorkers sets the number of goroutines hashing recovered files.
func WithHashWorkers(n int) Option {
	return func(o *validateOptions) {
		o.hashWorkers = n
	}
}

// WithoutContent skips the content check.
func WithoutContent() Option {
	return func(o *validateOptions) {
		o.content = false
	}
}

// WithoutInspection takes forensic inode numbers from the file listing
// even when istat output is available.
func WithoutInspection() Option {
	return func(o *validateOptions) {
		o.inspect = false
	}
}

func newValidateOptions(opts []Option) *validateOptions {
	o := &validateOptions{content: true, inspect: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate runs every check for one image. Failures to obtain or parse a
// listing abort the image: the error is returned and also recorded in
// Outcome.Err. Check failures are collected in the outcome.
func Validate(ctx context.Context, desc Descriptor, src Source, opts ...Option) (*Outcome, error) {
	o := newValidateOptions(opts)
	out := &Outcome{Descriptor: desc, Started: time.Now()}
	log := logger.With("image", desc.Name)

	err := validate(ctx, desc, src, o, out)
	out.Duration = time.Since(out.Started)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", desc.Name, err)
		out.Checks = nil
		log.Error("image aborted", "error", err)
		return out, out.Err
	}

	if !out.Passed() {
		log.Warn("image failed", "error", out.Mismatch())
	}
	log.Info("image validated", "pass", out.Passed(), "failures", len(out.Failures()),
		"duration", out.Duration)
	return out, nil
}

func validate(ctx context.Context, desc Descriptor, src Source, o *validateOptions, out *Outcome) error {
	forensic, joinErrs, duplicates, err := forensicRecords(ctx, desc, src)
	if err != nil {
		return err
	}
	out.InodeDuplicates = duplicates

	raw, err := src.StatListing(ctx)
	if err != nil {
		return fmt.Errorf("stat listing: %w", err)
	}
	osRecords, err := normalize.ParseStatListing(raw, desc.Mount, desc.Policy)
	if err != nil {
		return err
	}

	out.ForensicRecords = len(forensic)
	out.OSRecords = len(osRecords)
	if len(forensic) == 0 && len(osRecords) == 0 && len(joinErrs) == 0 {
		return ErrNoRecords
	}

	out.Checks = append(out.Checks, joinCheck(joinErrs))

	copts := []compare.Option{compare.WithPolicy(desc.Policy)}
	if o.inspect {
		if inspector := src.Inspector(); inspector != nil {
			copts = append(copts, compare.WithInspector(inspector))
		}
	}
	report := compare.New(forensic, osRecords, copts...).CheckAll(ctx, o.attrs...)
	out.Report = report
	if !report.Passed() {
		logger.Debug("attribute checks failed", "image", desc.Name, "failures", len(report.Failures()))
	}
	for _, res := range report.Results {
		out.Checks = append(out.Checks, Check{
			Name:         CheckName(res.Attribute),
			Pass:         res.Pass,
			OnlyForensic: res.OnlyForensic,
			OnlyOS:       res.OnlyOS,
			Err:          res.Err,
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.content && desc.Manifest != "" {
		check, files := contentCheck(ctx, desc, o)
		out.Checks = append(out.Checks, check)
		out.Files = files
	}
	return ctx.Err()
}

func forensicRecords(ctx context.Context, desc Descriptor, src Source) (record.Records, []*normalize.JoinError, int, error) {
	raw, err := src.FileListing(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("file listing: %w", err)
	}
	files, err := normalize.ParseFileListing(raw, desc.Policy)
	if err != nil {
		return nil, nil, 0, err
	}

	raw, err = src.InodeListing(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("inode listing: %w", err)
	}
	inodes, err := normalize.ParseInodeListing(raw)
	if err != nil {
		return nil, nil, 0, err
	}
	logger.Debug("listings parsed", "image", desc.Name, "files", len(files), "inodes", inodes.Len())

	records, joinErrs, err := normalize.Merge(files, inodes)
	if err != nil {
		return nil, nil, 0, err
	}
	return records, joinErrs, inodes.Duplicates, nil
}

// joinCheck reports listed files whose inode the inode listing lacks.
func joinCheck(joinErrs []*normalize.JoinError) Check {
	check := Check{Name: CheckJoin, Pass: len(joinErrs) == 0}
	errs := make([]error, 0, len(joinErrs))
	for _, je := range joinErrs {
		check.OnlyForensic = append(check.OnlyForensic, compare.Pair{
			Path:  je.Path,
			Value: strconv.FormatUint(je.Inode, 10),
		})
		errs = append(errs, je)
	}
	check.Err = errors.Join(errs...)
	return check
}

func contentCheck(ctx context.Context, desc Descriptor, o *validateOptions) (Check, int) {
	check := Check{Name: CheckContent}

	expected, err := content.ReadManifestFile(desc.Manifest)
	if err != nil {
		check.Err = err
		return check, 0
	}

	hopts := []content.Option{content.WithWorkers(o.hashWorkers)}
	if o.cache != nil {
		hopts = append(hopts, content.WithCache(o.cache))
	}
	actual, err := content.HashTree(ctx, desc.Recovered, desc.Policy, hopts...)
	if err != nil {
		check.Err = fmt.Errorf("recovered files: %w", err)
		return check, 0
	}

	res := content.Verify(expected, actual)
	if changed := res.Changed(); len(changed) > 0 {
		logger.Warn("recovered files differ from manifest", "image", desc.Name,
			"changed", len(changed), "first", changed[0])
	}
	check.Pass = res.Pass
	check.OnlyForensic = manifestPairs(res.Unexpected)
	check.OnlyOS = manifestPairs(res.Missing)
	return check, len(actual)
}

func manifestPairs(entries []record.ManifestEntry) []compare.Pair {
	if len(entries) == 0 {
		return nil
	}
	pairs := make([]compare.Pair, len(entries))
	for i, e := range entries {
		pairs[i] = compare.Pair{Path: e.Path, Value: e.Hash}
	}
	return pairs
}
