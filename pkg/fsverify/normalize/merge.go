package normalize

import (
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Merge joins file listing entries with the inode listing by inode number.
//
// Entries whose inode is absent from the table are left out and returned as
// JoinErrors so the caller can fail the image without losing the other
// records. A non-integer value in an integer attribute is a *ParseError.
func Merge(files []FileEntry, inodes InodeTable) (record.Records, []*JoinError, error) {
	records := make(record.Records, 0, len(files))
	var joinErrs []*JoinError

	for _, f := range files {
		entry, ok := inodes.Lookup(f.Inode)
		if !ok {
			joinErrs = append(joinErrs, &JoinError{Path: f.Path, Inode: f.Inode})
			continue
		}

		rec, err := mergeRecord(f, entry)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}

	if err := records.Validate(); err != nil {
		return nil, nil, &ParseError{Source: SourceFileListing, Field: flsName, Text: err.Error(), Err: err}
	}

	return records, joinErrs, nil
}

func mergeRecord(f FileEntry, entry InodeEntry) (record.Record, error) {
	rec := record.Record{
		Path:  f.Path,
		Inode: f.Inode,
		Mode:  entry.Fields[ilsMode],
		Size:  entry.Fields[ilsSize],
	}

	uints := []struct {
		dst   *uint64
		index int
	}{
		{&rec.UID, ilsUID},
		{&rec.GID, ilsGID},
		{&rec.Links, ilsLinks},
	}
	for _, u := range uints {
		n, ok := entry.Fields[u.index].Uint()
		if !ok {
			return record.Record{}, entryError(entry, u.index)
		}
		*u.dst = n
	}

	ints := []struct {
		dst   *int64
		index int
	}{
		{&rec.Mtime, ilsMtime},
		{&rec.Atime, ilsAtime},
		{&rec.Ctime, ilsCtime},
		{&rec.Crtime, ilsCrtime},
	}
	for _, n := range ints {
		v, ok := entry.Fields[n.index].Int()
		if !ok {
			return record.Record{}, entryError(entry, n.index)
		}
		*n.dst = v
	}

	return rec, nil
}

func entryError(entry InodeEntry, index int) error {
	return &ParseError{
		Source: SourceInodeListing,
		Line:   entry.Line,
		Field:  index,
		Text:   entry.Fields[index].String(),
		Err:    errNotInteger,
	}
}
