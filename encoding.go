package trie

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/trie/internal/binfmt"
)

// encodeMsgpack appends the msgpack encoding of v to buf. Maps are encoded
// with sorted keys so that equal values produce equal bytes.
func encodeMsgpack(buf []byte, v any) ([]byte, error) {
	bb := binfmt.Builder{Buf: buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, fmt.Errorf("failed to encode %T using msgpack: %w", v, err)
	}
	return bb.Buf, nil
}

func decodeMsgpack(buf []byte, off int, v any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return binfmt.Errorf(buf, off, err, "failed to decode msgpack into %T", v)
	}
	if r.Len() != 0 {
		return binfmt.Errorf(buf, off, ErrCorrupt, "%d trailing bytes after msgpack %T", r.Len(), v)
	}
	return nil
}
