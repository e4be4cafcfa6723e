// Package image describes the filesystem images under test and runs the
// validation pass for each one: parse the captured tool output, join the
// forensic listings, compare every attribute against the OS view and
// verify recovered file content against the image manifest.
package image

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

// ErrUnknownImage indicates a name that is neither in the catalog nor in
// the loaded matrix.
var ErrUnknownImage = errors.New("unknown image")

// Descriptor is one image configuration. Configurations are data: the
// built-in catalog and user matrix files produce the same type.
type Descriptor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Image is the file forensic tools read. For multi-device images it
	// is the first member.
	Image string `json:"image" yaml:"image"`

	// Members lists every device file of a multi-device image.
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`

	// Mount is the mount point the stat listing was taken under.
	Mount        string   `json:"mount,omitempty" yaml:"mount,omitempty"`
	MountOptions []string `json:"mount_options,omitempty" yaml:"mount_options,omitempty"`

	// Captures is the capture directory holding the tool output.
	Captures string `json:"captures,omitempty" yaml:"captures,omitempty"`

	// Manifest is the md5 manifest written when the image was built.
	// Empty skips the content check.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// Recovered is the directory tsk_recover extracted files into.
	Recovered string `json:"recovered,omitempty" yaml:"recovered,omitempty"`

	Policy normalize.Policy `json:"policy" yaml:"policy"`
}

// MultiDevice reports whether the image spans more than one device file.
func (d Descriptor) MultiDevice() bool {
	return len(d.Members) > 1
}

// Layout holds the directories relative descriptor paths resolve against.
type Layout struct {
	ImageDir   string
	CaptureDir string
	MountPath  string

	// RecoverDir, when set, receives recovered files as RecoverDir/<name>
	// instead of <captures>/recovered.
	RecoverDir string
}

// Apply resolves relative paths of d and fills in defaults: captures go
// to CaptureDir/<name>, recovered files to <captures>/recovered and the
// mount point to MountPath.
func (l Layout) Apply(d Descriptor) Descriptor {
	d.Image = resolve(l.ImageDir, d.Image)
	members := make([]string, len(d.Members))
	for i, m := range d.Members {
		members[i] = resolve(l.ImageDir, m)
	}
	d.Members = members
	if len(d.Members) == 0 {
		d.Members = nil
	}
	d.Manifest = resolve(l.ImageDir, d.Manifest)

	if d.Captures == "" {
		d.Captures = filepath.Join(l.CaptureDir, d.Name)
	} else {
		d.Captures = resolve(l.CaptureDir, d.Captures)
	}
	switch {
	case d.Recovered == "" && l.RecoverDir != "":
		d.Recovered = filepath.Join(l.RecoverDir, d.Name)
	case d.Recovered == "":
		d.Recovered = filepath.Join(d.Captures, RecoveredDir)
	case l.RecoverDir != "":
		d.Recovered = resolve(l.RecoverDir, d.Recovered)
	default:
		d.Recovered = resolve(d.Captures, d.Recovered)
	}
	if d.Mount == "" {
		d.Mount = l.MountPath
	}
	return d
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// BtrfsStandardFeatures are the mkfs.btrfs features every catalog image is
// built with unless its configuration switches them off.
const BtrfsStandardFeatures = "-Oextref,skinny-metadata"

type catalogEntry struct {
	name        string
	base        string
	description string
	raid        bool
	mountOpts   []string
}

var catalog = []catalogEntry{
	{name: "btrfs_standard", base: "btrfs", description: "mkfs.btrfs " + BtrfsStandardFeatures},
	{name: "btrfs_zlib", description: "mkfs.btrfs " + BtrfsStandardFeatures + ", mounted with forced zlib compression", mountOpts: []string{"compress-force=zlib"}},
	{name: "btrfs_lzo", description: "mkfs.btrfs " + BtrfsStandardFeatures + ", mounted with forced lzo compression", mountOpts: []string{"compress-force=lzo"}},
	{name: "btrfs_mixed", description: "mkfs.btrfs " + BtrfsStandardFeatures + " --mixed"},
	{name: "btrfs_nofeature", description: "mkfs.btrfs -O^extref,^skinny-metadata"},
	{name: "btrfs_nodemin", description: "mkfs.btrfs " + BtrfsStandardFeatures + " -n4096"},
	{name: "btrfs_nodemax", description: "mkfs.btrfs " + BtrfsStandardFeatures + " -n65536"},
	{name: "btrfs_noextref", description: "mkfs.btrfs -O^extref,skinny-metadata"},
	{name: "btrfs_noskinny", description: "mkfs.btrfs -Oextref,^skinny-metadata"},
	{name: "btrfs_noholes", description: "mkfs.btrfs " + BtrfsStandardFeatures + ",no-holes"},
	{name: "btrfs_raid0DM", description: "mkfs.btrfs " + BtrfsStandardFeatures + " -draid0 -mraid0 over two devices", raid: true},
	{name: "btrfs_raid1D", description: "mkfs.btrfs " + BtrfsStandardFeatures + " -draid1 -mraid0 over two devices", raid: true},
	{name: "btrfs_raid1DM", description: "mkfs.btrfs " + BtrfsStandardFeatures + " -draid1 -mraid1 over two devices", raid: true},
	{name: "ext2_btrfs", description: "mkfs.ext2 converted with btrfs-convert " + BtrfsStandardFeatures},
	{name: "ext3_btrfs", description: "mkfs.ext3 converted with btrfs-convert " + BtrfsStandardFeatures},
	{name: "ext4_btrfs", description: "mkfs.ext4 converted with btrfs-convert " + BtrfsStandardFeatures},
}

func (e catalogEntry) descriptor() Descriptor {
	base := e.base
	if base == "" {
		base = e.name
	}
	d := Descriptor{
		Name:         e.name,
		Description:  e.description,
		Manifest:     base + ".img.md5",
		MountOptions: append([]string(nil), e.mountOpts...),
		Policy:       normalize.DefaultPolicy(),
	}
	if e.raid {
		d.Members = []string{base + ".1.img", base + ".2.img"}
		d.Image = d.Members[0]
	} else {
		d.Image = base + ".img"
	}
	if len(d.MountOptions) == 0 {
		d.MountOptions = nil
	}
	return d
}

// Catalog returns the built-in image configurations with paths relative
// to the image directory.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, e := range catalog {
		out[i] = e.descriptor()
	}
	return out
}

// Lookup returns the catalog configuration with the given name.
func Lookup(name string) (Descriptor, bool) {
	for _, e := range catalog {
		if e.name == name {
			return e.descriptor(), true
		}
	}
	return Descriptor{}, false
}

// Custom describes a user-supplied image. Its manifest is expected next to
// it as <image>.md5 and it is named after the file without extension.
func Custom(path string) Descriptor {
	base := filepath.Base(path)
	return Descriptor{
		Name:        strings.TrimSuffix(base, filepath.Ext(base)),
		Description: "custom image " + base,
		Image:       path,
		Manifest:    path + ".md5",
		Policy:      normalize.DefaultPolicy(),
	}
}

// Select returns the descriptors named in names, in that order. An empty
// names returns all of them.
func Select(all []Descriptor, names []string) ([]Descriptor, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Descriptor, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownImage, name)
		}
		out = append(out, d)
	}
	return out, nil
}
