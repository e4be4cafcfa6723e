package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantInt bool
		want    string
	}{
		{name: "integer", input: "1000", wantInt: true, want: "1000"},
		{name: "zero", input: "0", wantInt: true, want: "0"},
		{name: "negative", input: "-5", wantInt: true, want: "-5"},
		{name: "octal digits stay base 10", input: "0644", wantInt: true, want: "644"},
		{name: "text", input: "a", wantInt: false, want: "a"},
		{name: "empty", input: "", wantInt: false, want: ""},
		{name: "path", input: "/mnt/loop/file", wantInt: false, want: "/mnt/loop/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseField(tt.input)
			assert.Equal(t, tt.wantInt, f.IsInt())
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestField_Comparable(t *testing.T) {
	assert.True(t, Int(5) == ParseField("5"))
	assert.False(t, Int(5) == Text("5"))
	assert.True(t, Text("x") == ParseField("x"))
}

func TestField_Uint(t *testing.T) {
	n, ok := Int(7).Uint()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)

	_, ok = Int(-1).Uint()
	assert.False(t, ok)

	_, ok = Text("7x").Uint()
	assert.False(t, ok)
}

func TestField_JSONRoundTrip(t *testing.T) {
	rec := Record{Path: "file", Mode: Int(644), Size: Text("garbage")}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":644`)
	assert.Contains(t, string(data), `"size":"garbage"`)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestField_YAMLRoundTrip(t *testing.T) {
	rec := Record{Path: "file", Mode: Int(755), Size: Text("12")}

	data, err := yaml.Marshal(rec)
	require.NoError(t, err)

	var got Record
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestRecords_Validate(t *testing.T) {
	ok := Records{{Path: "a"}, {Path: "b/c"}}
	require.NoError(t, ok.Validate())

	dup := Records{{Path: "a"}, {Path: "a"}}
	err := dup.Validate()
	require.ErrorIs(t, err, ErrDuplicatePath)
	assert.Contains(t, err.Error(), "a")
}

func TestRecords_FilterAndMapDoNotMutate(t *testing.T) {
	rs := Records{{Path: "a", Size: Int(10)}, {Path: "b", Size: Int(20)}}

	filtered := rs.Filter(func(r Record) bool { return r.Path == "b" })
	require.Len(t, filtered, 1)

	mapped := rs.Map(func(r Record) Record { return r.WithSize(Int(0)) })
	assert.Equal(t, "0", mapped[0].Size.String())
	assert.Equal(t, "10", rs[0].Size.String())
}

func TestParseAttribute(t *testing.T) {
	for _, a := range AllAttributes() {
		got, err := ParseAttribute(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	got, err := ParseAttribute("Structure")
	require.NoError(t, err)
	assert.Equal(t, AttrPath, got)

	got, err = ParseAttribute("link_count")
	require.NoError(t, err)
	assert.Equal(t, AttrLinks, got)

	_, err = ParseAttribute("colour")
	assert.ErrorIs(t, err, ErrInvalidAttribute)
}

func TestAttribute_Value(t *testing.T) {
	r := Record{
		Path: "a", Inode: 257, UID: 1000, GID: 100,
		Mtime: 1, Atime: 2, Ctime: 3, Crtime: 4,
		Mode: Int(644), Links: 2, Size: Int(4096),
	}

	want := map[Attribute]string{
		AttrPath: "", AttrInode: "257", AttrUID: "1000", AttrGID: "100",
		AttrMtime: "1", AttrAtime: "2", AttrCtime: "3", AttrCrtime: "4",
		AttrMode: "644", AttrLinks: "2", AttrSize: "4096",
	}
	for attr, v := range want {
		assert.Equal(t, v, attr.Value(r), attr.String())
	}
}

func TestSortManifest(t *testing.T) {
	entries := []ManifestEntry{{Path: "b", Hash: "1"}, {Path: "a", Hash: "2"}}
	SortManifest(entries)
	assert.Equal(t, "a", entries[0].Path)
	assert.Equal(t, "2  a", entries[0].String())
}
