package trie

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andreyvit/trie/internal/binfmt"
)

// DataError describes malformed or truncated input: Data holds the bytes
// being decoded (possibly partial) and Off the stream offset of the failure.
type DataError = binfmt.DataError

var (
	ErrUnsorted    = errors.New("trie: tuples not in strictly ascending order")
	ErrArity       = errors.New("trie: tuples of different arity")
	ErrAnnotations = errors.New("trie: annotation count does not match tuple count")
	ErrCorrupt     = errors.New("trie: corrupt data")
	ErrBadMagic    = errors.New("trie: not a trie file")
	ErrVersion     = errors.New("trie: unsupported file version")
	ErrChecksum    = errors.New("trie: checksum mismatch")
	ErrNotFound    = errors.New("trie: not found")
)

// CatalogError reports a failure concerning one named trie of a catalog.
type CatalogError struct {
	Name string
	Msg  string
	Err  error
}

func catalogErrf(name string, err error, format string, args ...any) error {
	return &CatalogError{name, fmt.Sprintf(format, args...), err}
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

func (e *CatalogError) Error() string {
	var buf strings.Builder
	buf.WriteString("catalog ")
	buf.WriteString(e.Name)
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
