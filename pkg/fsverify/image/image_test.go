package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/fsverify/pkg/fsverify/compare"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

const (
	flsCapture = `0|/a|257|r/rrw-r--r--|1000|1000|6|11|10|12|13
0|/b|258|d/drwxr-xr-x|1000|1000|4096|11|10|12|13
0|/b/c|259|r/rrw-r--r--|1000|1000|0|11|10|12|13
0|/$OrphanFiles|260|V/V---------|0|0|0|0|0|0|0
`
	ilsCapture = `class|host|device|start_time
ils|box||1700000000
st_ino|st_alloc|st_uid|st_gid|st_mtime|st_atime|st_ctime|st_crtime|st_mode|st_nlink|st_size
257|a|1000|1000|10|11|12|13|644|1|6
258|a|1000|1000|10|11|12|13|755|2|4096
259|a|1000|1000|10|11|12|13|644|1|0
`
	statCapture = `/mnt/loop/a|257|a|1000|1000|10|11|12|13|644|1|6
/mnt/loop/b|258|a|1000|1000|10|11|12|13|755|2|4096
/mnt/loop/b/c|259|a|1000|1000|10|11|12|13|644|1|0
`
	manifestCapture = `b1946ac92492d2347c6235b4d2611184 a
d41d8cd98f00b204e9800998ecf8427e b/c
--------------------------------
0123456789abcdef0123456789abcdef  test.img
`
)

// writeFiles creates files below dir from a map of slash paths to content.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
}

func istatOutput(inode string) string {
	return "inode: " + inode + "\nAllocated\nInode number: " + inode + "\nuid / gid: 1000 / 1000\n"
}

// newCapture builds a capture directory for one passing image and returns
// its descriptor. overrides replace or add capture files.
func newCapture(t *testing.T, overrides map[string]string) Descriptor {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		FileListingFile:  flsCapture,
		InodeListingFile: ilsCapture,
		StatListingFile:  statCapture,
		"test.img.md5":   manifestCapture,
		"recovered/a":    "hello\n",
		"recovered/b/c":  "",
	}
	for name, data := range overrides {
		files[name] = data
	}
	writeFiles(t, dir, files)

	return Descriptor{
		Name:      "test",
		Image:     filepath.Join(dir, "test.img"),
		Mount:     "/mnt/loop",
		Captures:  dir,
		Manifest:  filepath.Join(dir, "test.img.md5"),
		Recovered: filepath.Join(dir, RecoveredDir),
		Policy:    normalize.DefaultPolicy(),
	}
}

func checkByName(t *testing.T, o *Outcome, name string) Check {
	t.Helper()
	for _, c := range o.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s check in outcome", name)
	return Check{}
}

func TestValidate_Passes(t *testing.T) {
	desc := newCapture(t, nil)

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)
	require.NoError(t, out.Err)

	var names []string
	for _, c := range out.Checks {
		names = append(names, c.Name)
		assert.True(t, c.Pass, c.Name)
		assert.NoError(t, c.Err, c.Name)
	}
	assert.Equal(t, []string{
		"join", "structure", "inode", "uid", "gid", "mtime", "atime",
		"ctime", "crtime", "mode", "links", "size", "content",
	}, names)

	assert.True(t, out.Passed())
	assert.Empty(t, out.Failures())
	assert.NoError(t, out.Mismatch())
	assert.Len(t, out.Report.Results, 11)
	assert.Equal(t, 3, out.ForensicRecords)
	assert.Equal(t, 3, out.OSRecords)
	assert.Equal(t, 2, out.Files)
}

func TestValidate_UIDMismatch(t *testing.T) {
	desc := newCapture(t, map[string]string{
		StatListingFile: strings.Replace(statCapture,
			"/mnt/loop/a|257|a|1000|", "/mnt/loop/a|257|a|0|", 1),
	})

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)
	assert.False(t, out.Passed())

	failures := out.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "uid", failures[0].Name)
	assert.Equal(t, []compare.Pair{{Path: "a", Value: "1000"}}, failures[0].OnlyForensic)
	assert.Equal(t, []compare.Pair{{Path: "a", Value: "0"}}, failures[0].OnlyOS)

	require.False(t, out.Report.Passed())
	require.Len(t, out.Report.Failures(), 1)

	mismatch := out.Mismatch()
	require.ErrorIs(t, mismatch, compare.ErrMismatch)
	var me *compare.MismatchError
	require.ErrorAs(t, mismatch, &me)
	assert.Equal(t, record.AttrUID, me.Attribute)
	assert.Equal(t, []compare.Pair{{Path: "a", Value: "1000"}}, me.OnlyForensic)
	assert.Equal(t, []compare.Pair{{Path: "a", Value: "0"}}, me.OnlyOS)
}

func TestValidate_JoinFailure(t *testing.T) {
	desc := newCapture(t, map[string]string{
		FileListingFile: flsCapture + "0|/lost|77|r/rrw-r--r--|0|0|0|0|0|0|0\n",
	})

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)

	join := checkByName(t, out, CheckJoin)
	assert.False(t, join.Pass)
	assert.Equal(t, []compare.Pair{{Path: "lost", Value: "77"}}, join.OnlyForensic)
	require.ErrorIs(t, join.Err, normalize.ErrJoin)
	assert.Contains(t, join.Err.Error(), "77")
	assert.Contains(t, join.Err.Error(), "lost")

	// The unjoined entry is left out, so the remaining checks still pass.
	assert.True(t, checkByName(t, out, CheckStructure).Pass)
	assert.Len(t, out.Failures(), 1)

	mismatch := out.Mismatch()
	assert.ErrorIs(t, mismatch, normalize.ErrJoin)
	assert.NotErrorIs(t, mismatch, compare.ErrMismatch)
}

func TestValidate_Aborts(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		remove    string
		wantErr   error
	}{
		{name: "missing stat listing", remove: StatListingFile, wantErr: ErrMissingCapture},
		{name: "missing file listing", remove: FileListingFile, wantErr: ErrMissingCapture},
		{
			name:      "short inode line",
			overrides: map[string]string{InodeListingFile: "257|a|1000\n"},
			wantErr:   normalize.ErrParse,
		},
		{
			name:      "garbage stat inode",
			overrides: map[string]string{StatListingFile: "/mnt/loop/a|x|a|0|0|0|0|0|0|644|1|6\n"},
			wantErr:   normalize.ErrParse,
		},
		{
			name: "nothing listed",
			overrides: map[string]string{
				FileListingFile: "", InodeListingFile: "", StatListingFile: "",
			},
			wantErr: ErrNoRecords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := newCapture(t, tt.overrides)
			if tt.remove != "" {
				require.NoError(t, os.Remove(filepath.Join(desc.Captures, tt.remove)))
			}

			out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
			require.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, out)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Contains(t, out.Err.Error(), "test")
			assert.Empty(t, out.Checks)
			assert.False(t, out.Passed())
		})
	}
}

func TestValidate_Inspection(t *testing.T) {
	desc := newCapture(t, map[string]string{
		"istat/257.txt": istatOutput("257"),
		"istat/258.txt": istatOutput("258"),
		"istat/259.txt": istatOutput("999"),
	})
	src := DirSource{Dir: desc.Captures}

	out, err := Validate(context.Background(), desc, src)
	require.NoError(t, err)
	inode := checkByName(t, out, "inode")
	assert.False(t, inode.Pass)
	assert.Equal(t, []compare.Pair{{Path: "b/c", Value: "999"}}, inode.OnlyForensic)
	assert.Equal(t, []compare.Pair{{Path: "b/c", Value: "259"}}, inode.OnlyOS)

	out, err = Validate(context.Background(), desc, src, WithoutInspection())
	require.NoError(t, err)
	assert.True(t, checkByName(t, out, "inode").Pass)
}

func TestValidate_MissingIstatCaptureIsMismatch(t *testing.T) {
	desc := newCapture(t, map[string]string{
		"istat/257.txt": istatOutput("257"),
	})

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)

	inode := checkByName(t, out, "inode")
	assert.False(t, inode.Pass)
	assert.NoError(t, inode.Err)
	require.Len(t, inode.OnlyForensic, 2)
	for _, p := range inode.OnlyForensic {
		assert.True(t, strings.HasPrefix(p.Value, "!"), p.Value)
	}
}

func TestValidate_ContentMismatch(t *testing.T) {
	desc := newCapture(t, map[string]string{"recovered/a": "changed\n"})

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)

	check := checkByName(t, out, CheckContent)
	assert.False(t, check.Pass)
	require.Len(t, check.OnlyOS, 1)
	assert.Equal(t, compare.Pair{Path: "a", Value: "b1946ac92492d2347c6235b4d2611184"}, check.OnlyOS[0])
	require.Len(t, check.OnlyForensic, 1)
	assert.Equal(t, "a", check.OnlyForensic[0].Path)

	assert.True(t, out.Report.Passed())
	assert.ErrorIs(t, out.Mismatch(), compare.ErrMismatch)
}

func TestValidate_ContentErrors(t *testing.T) {
	desc := newCapture(t, nil)
	require.NoError(t, os.RemoveAll(desc.Recovered))

	out, err := Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)
	check := checkByName(t, out, CheckContent)
	assert.False(t, check.Pass)
	assert.Error(t, check.Err)

	desc = newCapture(t, nil)
	desc.Manifest = filepath.Join(desc.Captures, "absent.md5")
	out, err = Validate(context.Background(), desc, DirSource{Dir: desc.Captures})
	require.NoError(t, err)
	assert.Error(t, checkByName(t, out, CheckContent).Err)
}

func TestValidate_Options(t *testing.T) {
	desc := newCapture(t, map[string]string{"recovered/a": "changed\n"})
	src := DirSource{Dir: desc.Captures}

	out, err := Validate(context.Background(), desc, src, WithoutContent())
	require.NoError(t, err)
	assert.True(t, out.Passed())
	for _, c := range out.Checks {
		assert.NotEqual(t, CheckContent, c.Name)
	}

	out, err = Validate(context.Background(), desc, src,
		WithoutContent(), WithAttributes(record.AttrPath, record.AttrUID))
	require.NoError(t, err)
	require.Len(t, out.Checks, 3)
	assert.Equal(t, "structure", out.Checks[1].Name)
	assert.Equal(t, "uid", out.Checks[2].Name)

	desc.Manifest = ""
	out, err = Validate(context.Background(), desc, src)
	require.NoError(t, err)
	assert.True(t, out.Passed())
}

func TestValidate_Cancelled(t *testing.T) {
	desc := newCapture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Validate(ctx, desc, DirSource{Dir: desc.Captures})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.Passed())
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	good := newCapture(t, nil)
	bad := newCapture(t, nil)
	bad.Name = "bad"
	require.NoError(t, os.Remove(filepath.Join(bad.Captures, StatListingFile)))
	unopened := good
	unopened.Name = "unopened"

	m := Matrix{Images: []Descriptor{bad, good, unopened}}

	var (
		mu   sync.Mutex
		done []string
	)
	errOpen := errors.New("no such device")
	cfg := RunConfig{
		Workers: 2,
		Open: func(ctx context.Context, d Descriptor) (Source, error) {
			if d.Name == "unopened" {
				return nil, errOpen
			}
			return OpenCaptures(ctx, d)
		},
		OnDone: func(o *Outcome) {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, o.Descriptor.Name)
		},
	}

	outcomes, err := Run(context.Background(), m, cfg)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "bad", outcomes[0].Descriptor.Name)
	assert.ErrorIs(t, outcomes[0].Err, ErrMissingCapture)
	assert.True(t, outcomes[1].Passed())
	assert.ErrorIs(t, outcomes[2].Err, errOpen)
	assert.ElementsMatch(t, []string{"bad", "test", "unopened"}, done)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	desc := newCapture(t, nil)
	outcomes, err := Run(ctx, Matrix{Images: []Descriptor{desc}}, RunConfig{})
	require.ErrorIs(t, err, context.Canceled)
	for _, o := range outcomes {
		assert.False(t, o.Passed())
	}
}

func TestDirSource_Inspector(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, DirSource{Dir: dir}.Inspector())

	writeFiles(t, dir, map[string]string{"istat/5.txt": istatOutput("5")})
	inspector := DirSource{Dir: dir}.Inspector()
	require.NotNil(t, inspector)

	out, err := inspector.Inspect(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, istatOutput("5"), string(out))

	_, err = inspector.Inspect(context.Background(), 6)
	assert.Error(t, err)
	assert.Equal(t, filepath.Join(dir, "istat", "6.txt"), IstatFile(dir, 6))
}
