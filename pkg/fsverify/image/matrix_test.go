package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

var testLayout = Layout{ImageDir: "/images", CaptureDir: "/captures", MountPath: "/mnt/loop"}

func TestCatalog(t *testing.T) {
	images := Catalog()
	require.Len(t, images, 16)

	seen := make(map[string]bool)
	for _, d := range images {
		assert.False(t, seen[d.Name], "duplicate %s", d.Name)
		seen[d.Name] = true
		assert.NotEmpty(t, d.Image, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.Equal(t, normalize.DefaultPolicy(), d.Policy, d.Name)
	}

	std, ok := Lookup("btrfs_standard")
	require.True(t, ok)
	assert.Equal(t, "btrfs.img", std.Image)
	assert.Equal(t, "btrfs.img.md5", std.Manifest)
	assert.False(t, std.MultiDevice())

	zlib, _ := Lookup("btrfs_zlib")
	assert.Equal(t, []string{"compress-force=zlib"}, zlib.MountOptions)
	lzo, _ := Lookup("btrfs_lzo")
	assert.Equal(t, []string{"compress-force=lzo"}, lzo.MountOptions)

	raid, _ := Lookup("btrfs_raid1DM")
	assert.True(t, raid.MultiDevice())
	assert.Equal(t, []string{"btrfs_raid1DM.1.img", "btrfs_raid1DM.2.img"}, raid.Members)
	assert.Equal(t, "btrfs_raid1DM.1.img", raid.Image)
	assert.Equal(t, "btrfs_raid1DM.img.md5", raid.Manifest)

	_, ok = Lookup("ntfs")
	assert.False(t, ok)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	a := Catalog()
	a[1].MountOptions[0] = "changed"
	b := Catalog()
	assert.Equal(t, "compress-force=zlib", b[1].MountOptions[0])
}

func TestLayout_Apply(t *testing.T) {
	raid, _ := Lookup("btrfs_raid0DM")
	d := testLayout.Apply(raid)

	assert.Equal(t, "/images/btrfs_raid0DM.1.img", d.Image)
	assert.Equal(t, []string{"/images/btrfs_raid0DM.1.img", "/images/btrfs_raid0DM.2.img"}, d.Members)
	assert.Equal(t, "/images/btrfs_raid0DM.img.md5", d.Manifest)
	assert.Equal(t, "/captures/btrfs_raid0DM", d.Captures)
	assert.Equal(t, "/captures/btrfs_raid0DM/recovered", d.Recovered)
	assert.Equal(t, "/mnt/loop", d.Mount)

	custom := testLayout.Apply(Descriptor{
		Name: "x", Image: "/abs/x.img", Captures: "xc", Recovered: "/r", Mount: "/mnt/x",
	})
	assert.Equal(t, "/abs/x.img", custom.Image)
	assert.Equal(t, "/captures/xc", custom.Captures)
	assert.Equal(t, "/r", custom.Recovered)
	assert.Equal(t, "/mnt/x", custom.Mount)
	assert.Empty(t, custom.Manifest)
	assert.Nil(t, custom.Members)

	withRecover := testLayout
	withRecover.RecoverDir = "/files"
	assert.Equal(t, "/files/btrfs_raid0DM", withRecover.Apply(raid).Recovered)
	assert.Equal(t, "/files/r", withRecover.Apply(Descriptor{Name: "y", Recovered: "r"}).Recovered)
}

func TestCustom(t *testing.T) {
	d := Custom("./btrfs_custom.img")
	assert.Equal(t, "btrfs_custom", d.Name)
	assert.Equal(t, "./btrfs_custom.img", d.Image)
	assert.Equal(t, "./btrfs_custom.img.md5", d.Manifest)
	assert.Equal(t, normalize.DefaultPolicy(), d.Policy)
}

func TestSelect(t *testing.T) {
	m := DefaultMatrix(testLayout)
	assert.Len(t, m.Names(), 16)

	sub, err := m.Select([]string{"ext4_btrfs", "btrfs_lzo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ext4_btrfs", "btrfs_lzo"}, sub.Names())

	all, err := m.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all.Images, 16)

	_, err = m.Select([]string{"btrfs_lzo", "nope"})
	require.ErrorIs(t, err, ErrUnknownImage)
	assert.Contains(t, err.Error(), "nope")
}

func TestParseMatrix(t *testing.T) {
	data := `
images:
  - name: btrfs_zlib
    policy:
      zero_pseudo_entry_size: false
  - name: field_disk
    image: /evidence/disk.img
    manifest: disk.img.md5
    policy:
      ignore: ["lost+found/**"]
`
	m, err := ParseMatrix([]byte(data), testLayout)
	require.NoError(t, err)
	require.Len(t, m.Images, 2)

	zlib := m.Images[0]
	assert.Equal(t, "/images/btrfs_zlib.img", zlib.Image)
	assert.Equal(t, []string{"compress-force=zlib"}, zlib.MountOptions)
	assert.NotEmpty(t, zlib.Description)
	assert.True(t, zlib.Policy.ExcludeConversionBackup)
	assert.True(t, zlib.Policy.CollapseSnapshotDuplicates)
	assert.False(t, zlib.Policy.ZeroPseudoEntrySize)

	disk := m.Images[1]
	assert.Equal(t, "/evidence/disk.img", disk.Image)
	assert.Equal(t, "/images/disk.img.md5", disk.Manifest)
	assert.Equal(t, "/captures/field_disk", disk.Captures)
	assert.True(t, disk.Policy.ZeroPseudoEntrySize)
	assert.Equal(t, []string{"lost+found/**"}, disk.Policy.Ignore)
}

func TestParseMatrix_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "images: [unterminated"},
		{name: "missing name", data: "images:\n  - image: a.img\n"},
		{name: "duplicate name", data: "images:\n  - name: btrfs_lzo\n  - name: btrfs_lzo\n"},
		{name: "missing image", data: "images:\n  - name: mine\n"},
		{name: "bad glob", data: "images:\n  - name: btrfs_lzo\n    policy:\n      ignore: [\"[unclosed\"]\n"},
		{name: "wrong type", data: "images:\n  - name: [1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMatrix([]byte(tt.data), testLayout)
			assert.ErrorIs(t, err, ErrInvalidMatrix)
		})
	}
}

func TestLoadMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("images:\n  - name: btrfs_mixed\n"), 0o644))

	m, err := LoadMatrix(path, testLayout)
	require.NoError(t, err)
	assert.Equal(t, []string{"btrfs_mixed"}, m.Names())

	_, err = LoadMatrix(filepath.Join(t.TempDir(), "absent.yaml"), testLayout)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
