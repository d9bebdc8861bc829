package trie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	catalogBucket    = "tries"
	catalogData      = "data"
	catalogManifests = "manifests"
)

// Catalog keeps named tries in a key-value store, each stored in the trie
// file format next to its msgpack Manifest.
type Catalog struct {
	st      storage
	logger  *slog.Logger
	verbose bool
}

type CatalogOptions struct {
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration
}

// Storable is what a Catalog persists; *Trie[R] implements it.
type Storable interface {
	io.WriterTo
	Manifest() *Manifest
}

// OpenCatalog opens (creating if needed) a Bolt-backed catalog at path.
func OpenCatalog(path string, opt CatalogOptions) (*Catalog, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 256
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("trie catalog: %w", err)
	}
	return newCatalog(newBoltStorage(bdb), opt), nil
}

// NewMemCatalog returns a transient in-memory catalog.
func NewMemCatalog() *Catalog {
	return newCatalog(newMemStorage(), CatalogOptions{})
}

func newCatalog(st storage, opt CatalogOptions) *Catalog {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Catalog{st: st, logger: opt.Logger, verbose: opt.Verbose}
}

func (c *Catalog) Close() error {
	return c.st.Close()
}

func (c *Catalog) tx(writable bool, f func(tx storageTx) error) error {
	stx, err := c.st.BeginTx(writable)
	if err != nil {
		return err
	}
	defer stx.Rollback()
	if err := f(stx); err != nil {
		return err
	}
	if writable {
		return stx.Commit()
	}
	return nil
}

func (c *Catalog) debugf(msg string, attrs ...slog.Attr) {
	if c.verbose {
		c.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}

// Put stores t under name, replacing any previous trie of that name.
func (c *Catalog) Put(name string, t Storable) error {
	if name == "" {
		return catalogErrf(name, nil, "empty name")
	}
	var data bytes.Buffer
	if _, err := t.WriteTo(&data); err != nil {
		return catalogErrf(name, err, "encode")
	}
	m := t.Manifest()
	m.Bytes = int64(data.Len())
	mraw, err := encodeMsgpack(nil, m)
	if err != nil {
		return catalogErrf(name, err, "encode manifest")
	}

	err = c.tx(true, func(tx storageTx) error {
		db, err := tx.CreateBucket(catalogBucket, catalogData)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucket(catalogBucket, catalogManifests)
		if err != nil {
			return err
		}
		if err := db.Put([]byte(name), data.Bytes()); err != nil {
			return err
		}
		return mb.Put([]byte(name), mraw)
	})
	if err != nil {
		return catalogErrf(name, err, "put")
	}
	c.debugf("trie stored",
		slog.String("name", name),
		slog.Int("tuples", m.Tuples),
		slog.Int64("bytes", m.Bytes))
	return nil
}

// Get loads the trie stored under name. A missing name yields an error
// matching ErrNotFound.
func Get[R any](c *Catalog, name string, opt Options) (*Trie[R], error) {
	var t *Trie[R]
	err := c.tx(false, func(tx storageTx) error {
		b := tx.Bucket(catalogBucket, catalogData)
		var raw []byte
		if b != nil {
			raw = b.Get([]byte(name))
		}
		if raw == nil {
			return ErrNotFound
		}
		var err error
		t, err = DecodeTrie[R](raw, opt)
		if err != nil {
			var de *DataError
			if errors.As(err, &de) {
				c.logger.LogAttrs(context.Background(), slog.LevelWarn, "corrupt trie in catalog",
					slog.String("name", name),
					slog.Int("off", de.Off),
					hexAttr("data", de.Data))
			}
		}
		return err
	})
	if err != nil {
		return nil, catalogErrf(name, err, "get")
	}
	return t, nil
}

// Manifest returns the manifest stored for name without loading the trie.
func (c *Catalog) Manifest(name string) (*Manifest, error) {
	var m Manifest
	err := c.tx(false, func(tx storageTx) error {
		b := tx.Bucket(catalogBucket, catalogManifests)
		var raw []byte
		if b != nil {
			raw = b.Get([]byte(name))
		}
		if raw == nil {
			return ErrNotFound
		}
		return decodeMsgpack(raw, 0, &m)
	})
	if err != nil {
		return nil, catalogErrf(name, err, "manifest")
	}
	return &m, nil
}

// Delete removes the trie stored under name.
func (c *Catalog) Delete(name string) error {
	err := c.tx(true, func(tx storageTx) error {
		db := tx.Bucket(catalogBucket, catalogData)
		mb := tx.Bucket(catalogBucket, catalogManifests)
		if db == nil || mb == nil || db.Get([]byte(name)) == nil {
			return ErrNotFound
		}
		if err := db.Delete([]byte(name)); err != nil {
			return err
		}
		return mb.Delete([]byte(name))
	})
	if err != nil {
		return catalogErrf(name, err, "delete")
	}
	c.debugf("trie deleted", slog.String("name", name))
	return nil
}

// Names lists the stored names starting with prefix, in ascending order.
func (c *Catalog) Names(prefix string) ([]string, error) {
	var names []string
	err := c.tx(false, func(tx storageTx) error {
		b := tx.Bucket(catalogBucket, catalogManifests)
		if b == nil {
			return nil
		}
		cur := b.Cursor()
		for k, _ := cur.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = cur.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trie catalog: names: %w", err)
	}
	return names, nil
}

type CatalogStats struct {
	Tries     int
	DataSize  int64
	DataAlloc int64
	FileSize  int64
}

func (c *Catalog) Stats() (CatalogStats, error) {
	var st CatalogStats
	err := c.tx(false, func(tx storageTx) error {
		st.FileSize = tx.Size()
		if b := tx.Bucket(catalogBucket, catalogData); b != nil {
			bs := b.Stats()
			st.Tries = bs.KeyN
			st.DataSize = bs.LeafInuse
			st.DataAlloc = bs.TotalAlloc()
		}
		return nil
	})
	return st, err
}
