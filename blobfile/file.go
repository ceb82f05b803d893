// Package blobfile turns named files into erasure-coded, content-addressed
// blobs and back.
//
// A blob is a quilt: one or more files packed into a single byte string,
// optionally compressed, then split into Reed-Solomon slivers. The blob id is
// a CIDv1 (raw codec, sha2-256) over the quilt bytes.
package blobfile

import "sort"

// Well-known tag keys.
const (
	TagContentType = "content-type"
	TagEncrypted   = "encrypted"
	TagService     = "service"
	TagUsername    = "username"
	TagType        = "type"
)

// TypePasswordEntry is the TagType value of vault password records.
const TypePasswordEntry = "password-entry"

// File is one named entry of a blob. Tags are advisory metadata and are not
// bound to Contents cryptographically.
type File struct {
	Identifier string
	Contents   []byte
	Tags       map[string]string
}

// NewFile returns a File holding copies of contents and tags.
func NewFile(contents []byte, identifier string, tags map[string]string) *File {
	f := &File{
		Identifier: identifier,
		Contents:   append([]byte(nil), contents...),
		Tags:       make(map[string]string, len(tags)),
	}
	for k, v := range tags {
		f.Tags[k] = v
	}
	return f
}

// Tag returns the value of key, or "" when unset.
func (f *File) Tag(key string) string {
	if f.Tags == nil {
		return ""
	}
	return f.Tags[key]
}

// IsEncrypted reports whether the file is tagged encrypted=true.
func (f *File) IsEncrypted() bool {
	return f.Tag(TagEncrypted) == "true"
}

// sortedTagKeys returns the tag keys in lexical order.
func (f *File) sortedTagKeys() []string {
	keys := make([]string, 0, len(f.Tags))
	for k := range f.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
