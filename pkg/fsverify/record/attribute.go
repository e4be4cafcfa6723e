package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Attribute names one metadata dimension that can be compared across sources.
type Attribute int

// Attributes in the order checks are reported.
const (
	AttrPath Attribute = iota
	AttrInode
	AttrUID
	AttrGID
	AttrMtime
	AttrAtime
	AttrCtime
	AttrCrtime
	AttrMode
	AttrLinks
	AttrSize
)

var attributeNames = [...]string{
	AttrPath:   "path",
	AttrInode:  "inode",
	AttrUID:    "uid",
	AttrGID:    "gid",
	AttrMtime:  "mtime",
	AttrAtime:  "atime",
	AttrCtime:  "ctime",
	AttrCrtime: "crtime",
	AttrMode:   "mode",
	AttrLinks:  "links",
	AttrSize:   "size",
}

// ErrInvalidAttribute indicates an unknown attribute name.
var ErrInvalidAttribute = errors.New("invalid attribute")

// String returns the attribute name.
func (a Attribute) String() string {
	if a < 0 || int(a) >= len(attributeNames) {
		return "unknown"
	}
	return attributeNames[a]
}

// ParseAttribute parses an attribute name (case-insensitive).
// "structure" is accepted as an alias for path.
func ParseAttribute(s string) (Attribute, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "structure":
		return AttrPath, nil
	case "link_count", "nlink":
		return AttrLinks, nil
	case "size_bytes":
		return AttrSize, nil
	}
	for i, n := range attributeNames {
		if n == name {
			return Attribute(i), nil
		}
	}
	return AttrPath, fmt.Errorf("%w: %q", ErrInvalidAttribute, s)
}

// AllAttributes returns every attribute in report order.
func AllAttributes() []Attribute {
	attrs := make([]Attribute, len(attributeNames))
	for i := range attributeNames {
		attrs[i] = Attribute(i)
	}
	return attrs
}

// Value renders the attribute of r as a comparable string.
// The path attribute has no value of its own and renders empty.
func (a Attribute) Value(r Record) string {
	switch a {
	case AttrInode:
		return strconv.FormatUint(r.Inode, 10)
	case AttrUID:
		return strconv.FormatUint(r.UID, 10)
	case AttrGID:
		return strconv.FormatUint(r.GID, 10)
	case AttrMtime:
		return strconv.FormatInt(r.Mtime, 10)
	case AttrAtime:
		return strconv.FormatInt(r.Atime, 10)
	case AttrCtime:
		return strconv.FormatInt(r.Ctime, 10)
	case AttrCrtime:
		return strconv.FormatInt(r.Crtime, 10)
	case AttrMode:
		return r.Mode.String()
	case AttrLinks:
		return strconv.FormatUint(r.Links, 10)
	case AttrSize:
		return r.Size.String()
	default:
		return ""
	}
}
