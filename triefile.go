package trie

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	"github.com/andreyvit/trie/arena"
	"github.com/andreyvit/trie/internal/binfmt"
	"github.com/andreyvit/trie/internal/fsync"
)

const (
	fileMagic   = "TRIEBLK1"
	fileVersion = 1

	maxManifestSize = 1 << 20
)

// Manifest describes a stored trie. It heads every trie file and is kept
// alongside each catalog entry.
type Manifest struct {
	Version   int   `msgpack:"v"`
	Levels    int   `msgpack:"l"`
	Tuples    int   `msgpack:"t"`
	Blocks    []int `msgpack:"b"`
	Annotated bool  `msgpack:"a"`
	Bytes     int64 `msgpack:"sz,omitempty"`
}

// Manifest describes t as WriteTrie would record it.
func (t *Trie[R]) Manifest() *Manifest {
	m := &Manifest{
		Version:   fileVersion,
		Levels:    t.levels,
		Tuples:    t.tuples,
		Blocks:    make([]int, t.levels),
		Annotated: t.annotated,
	}
	t.forEachLevel(func(level int, _ *Block[R], children []arena.Ref) {
		m.Blocks[level] += len(children)
	})
	return m
}

// WriteTo implements io.WriterTo by writing t in the trie file format.
func (t *Trie[R]) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := WriteTrie(cw, t)
	return cw.n, err
}

// WriteTrie writes t to w:
//
//	magic "TRIEBLK1"
//	manifest_size:u32 manifest:msgpack
//	per level, per parent block of the previous level in order:
//	    child_count:u32 node_record*child_count
//	annotations_size:u32 annotations:msgpack []R   (annotated tries only)
//	checksum:u64 (xxhash64 of everything above)
//
// The first level has a single virtual parent. A node's parent is implied
// by the group it appears in; its linkage names the slot it occupies.
func WriteTrie[R any](w io.Writer, t *Trie[R]) error {
	bw := bufio.NewWriter(w)
	h := xxhash.New()
	out := io.MultiWriter(bw, h)

	buf := getScratch()
	defer func() { releaseScratch(buf) }()

	buf = append(buf, fileMagic...)
	mpos := len(buf)
	buf = binfmt.AppendUint32(buf, 0)
	buf, err := encodeMsgpack(buf, t.Manifest())
	if err != nil {
		return err
	}
	n := len(buf) - mpos - 4
	if n > maxManifestSize {
		return fmt.Errorf("trie manifest too large: %d bytes", n)
	}
	binary.LittleEndian.PutUint32(buf[mpos:], uint32(n))
	if _, err := out.Write(buf); err != nil {
		return err
	}

	var werr error
	t.forEachLevel(func(level int, parent *Block[R], children []arena.Ref) {
		if werr != nil {
			return
		}
		buf = binfmt.AppendInt32(buf[:0], len(children))
		i := 0
		visit := func(pos int, v uint32) {
			link := Linkage{PrevIndex: 0, PrevData: 0}
			if parent != nil {
				link = Linkage{PrevIndex: uint32(parent.slot(pos, v)), PrevData: v}
			}
			buf = t.alloc.Block(children[i]).AppendBinary(buf, link)
			i++
			if len(buf) >= 64*1024 {
				_, werr = out.Write(buf)
				buf = buf[:0]
			}
		}
		if parent == nil {
			visit(0, 0)
		} else {
			parent.Set().ForEachIndex(visit)
		}
		if werr == nil {
			_, werr = out.Write(buf)
		}
	})
	if werr != nil {
		return werr
	}

	if t.annotated {
		anns := make([]R, 0, t.tuples)
		t.ForEachTuple(func(_ []uint32, r R) {
			anns = append(anns, r)
		})
		buf = binfmt.AppendUint32(buf[:0], 0)
		buf, err = encodeMsgpack(buf, anns)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(buf, uint32(len(buf)-4))
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}

	buf = binfmt.AppendUint64(buf[:0], h.Sum64())
	if _, err := bw.Write(buf); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadTrie loads a trie written by WriteTrie. Any truncation, inconsistency
// or checksum mismatch fails the whole load; no partially linked trie is
// ever returned.
func ReadTrie[R any](r io.Reader, opt Options) (*Trie[R], error) {
	br := bufio.NewReader(r)
	h := xxhash.New()
	in := binfmt.NewReader(io.TeeReader(br, h))

	magic := make([]byte, len(fileMagic))
	if err := in.ReadFull(magic); err != nil {
		return nil, binfmt.NotEOF(err)
	}
	if string(magic) != fileMagic {
		return nil, binfmt.Errorf(magic, 0, ErrBadMagic, "invalid trie file header")
	}

	var m Manifest
	if err := readSection(in, maxManifestSize, &m); err != nil {
		return nil, err
	}
	if m.Version != fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, m.Version)
	}
	if m.Levels < 0 || len(m.Blocks) != m.Levels || m.Tuples < 0 || (m.Levels == 0 && m.Tuples != 0) {
		return nil, binfmt.Errorf(nil, int(in.Offset()), ErrCorrupt, "invalid manifest: %+v", m)
	}

	t := New[R](opt)
	t.levels = m.Levels
	t.annotated = m.Annotated
	alloc := t.alloc

	var parents []arena.Ref
	var leaves []arena.Ref
	for level := 0; level < m.Levels; level++ {
		var cur []arena.Ref
		groups := len(parents)
		if level == 0 {
			groups = 1
		}
		for g := 0; g < groups; g++ {
			var parent *Block[R]
			if level > 0 {
				parent = alloc.Block(parents[g])
				parent.InitPointers(0, alloc)
			}
			n, err := in.Uint32()
			if err != nil {
				return nil, binfmt.NotEOF(err)
			}
			want := 1
			if parent != nil {
				want = parent.Set().Cardinality()
			}
			if int64(n) != int64(want) {
				return nil, binfmt.Errorf(nil, int(in.Offset()), ErrCorrupt, "level %d group %d has %d blocks, wanted %d", level, g, n, want)
			}
			for i := 0; i < want; i++ {
				off := int(in.Offset())
				ref, link, err := ReadBlock(in, alloc, 0)
				if err != nil {
					return nil, binfmt.NotEOF(err)
				}
				if parent == nil {
					if link != (Linkage{}) {
						return nil, binfmt.Errorf(nil, off, ErrCorrupt, "root block has linkage %+v", link)
					}
				} else if err := relink(parent, link, ref); err != nil {
					return nil, binfmt.Errorf(nil, off, err, "invalid linkage at level %d", level)
				}
				cur = append(cur, ref)
			}
		}
		if len(cur) != m.Blocks[level] {
			return nil, binfmt.Errorf(nil, int(in.Offset()), ErrCorrupt, "level %d has %d blocks, manifest says %d", level, len(cur), m.Blocks[level])
		}
		if level == 0 {
			t.root = cur[0]
		}
		parents, leaves = cur, cur
	}

	var tuples int
	for _, ref := range leaves {
		tuples += alloc.Block(ref).Set().Cardinality()
	}
	if tuples != m.Tuples {
		return nil, binfmt.Errorf(nil, int(in.Offset()), ErrCorrupt, "trie holds %d tuples, manifest says %d", tuples, m.Tuples)
	}
	t.tuples = tuples

	if m.Annotated {
		var anns []R
		if err := readSection(in, -1, &anns); err != nil {
			return nil, err
		}
		if len(anns) != tuples {
			return nil, binfmt.Errorf(nil, int(in.Offset()), ErrAnnotations, "%d annotations for %d tuples", len(anns), tuples)
		}
		k := 0
		for _, ref := range leaves {
			b := alloc.Block(ref)
			b.AllocData(0, alloc)
			b.Set().ForEachIndex(func(pos int, v uint32) {
				b.SetData(pos, v, anns[k])
				k++
			})
		}
	}

	sum := h.Sum64()
	got, err := binfmt.NewReader(br).Uint64()
	if err != nil {
		return nil, binfmt.Errorf(nil, int(in.Offset()), io.ErrUnexpectedEOF, "missing checksum")
	}
	footer := binfmt.AppendUint64(nil, got)
	if got != sum {
		return nil, binfmt.Errorf(footer, int(in.Offset()), ErrChecksum, "checksum %016x, computed %016x", got, sum)
	}

	t.debugf("trie loaded",
		hexAttr("checksum", footer),
		slog.Int("tuples", t.tuples),
		slog.Int("levels", t.levels),
		slog.Int("blocks", alloc.Blocks()))
	return t, nil
}

// DecodeTrie loads a trie from an in-memory trie file. Unlike ReadTrie, it
// verifies the checksum before decoding anything, so a corrupt buffer is
// rejected without sizing any block from its contents.
func DecodeTrie[R any](data []byte, opt Options) (*Trie[R], error) {
	if len(data) < len(fileMagic)+8 {
		return nil, binfmt.Errorf(data, len(data), io.ErrUnexpectedEOF, "trie file of %d bytes is truncated", len(data))
	}
	if string(data[:len(fileMagic)]) != fileMagic {
		return nil, binfmt.Errorf(data[:len(fileMagic)], 0, ErrBadMagic, "invalid trie file header")
	}
	body := len(data) - 8
	d := binfmt.MakeDecoder(data[body:])
	got, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	if sum := xxhash.Sum64(data[:body]); got != sum {
		return nil, binfmt.Errorf(data[body:], body, ErrChecksum, "checksum %016x, computed %016x", got, sum)
	}
	return ReadTrie[R](bytes.NewReader(data), opt)
}

// relink stores child in parent's slot named by link, checking that the
// slot belongs to the key it claims and is not already taken.
func relink[R any](parent *Block[R], link Linkage, child arena.Ref) error {
	pos, ok := parent.Set().Find(link.PrevData)
	if !ok {
		return fmt.Errorf("%w: key %d not in parent", ErrCorrupt, link.PrevData)
	}
	if s := parent.slot(pos, link.PrevData); uint32(s) != link.PrevIndex {
		return fmt.Errorf("%w: key %d lives in slot %d, not %d", ErrCorrupt, link.PrevData, s, link.PrevIndex)
	}
	if parent.BlockAt(pos, link.PrevData) != arena.NoRef {
		return fmt.Errorf("%w: key %d linked twice", ErrCorrupt, link.PrevData)
	}
	parent.SetBlock(pos, link.PrevData, child)
	return nil
}

// readSection decodes a length-prefixed msgpack section into v. A negative
// limit disables the size check.
func readSection(in *binfmt.Reader, limit int, v any) error {
	off := int(in.Offset())
	n, err := in.Uint32()
	if err != nil {
		return binfmt.NotEOF(err)
	}
	if limit >= 0 && int64(n) > int64(limit) {
		return binfmt.Errorf(nil, off, ErrCorrupt, "%T section of %d bytes exceeds %d", v, n, limit)
	}
	// copy rather than preallocate n bytes, which a corrupt length could
	// make arbitrarily large
	var bb bytes.Buffer
	if _, err := io.CopyN(&bb, in, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return binfmt.Errorf(bb.Bytes(), int(in.Offset()), err, "short %T section: got %d of %d bytes", v, bb.Len(), n)
	}
	return decodeMsgpack(bb.Bytes(), off+4, v)
}

// WriteFile atomically replaces path with the trie file for t.
func WriteFile[R any](path string, t *Trie[R]) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := WriteTrie(f, t); err != nil {
		f.Close()
		return err
	}
	if err := fsync.Data(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return fsync.Dir(filepath.Dir(path))
}

// OpenFile loads the trie file at path by memory-mapping it. The trie is
// copied into its own allocator, so the mapping is released before
// OpenFile returns.
func OpenFile[R any](path string, opt Options) (*Trie[R], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", path, binfmt.Errorf(nil, 0, io.ErrUnexpectedEOF, "empty trie file"))
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: mmap: %w", path, err)
	}
	defer m.Unmap()

	t, err := DecodeTrie[R](m, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
