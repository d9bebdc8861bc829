// Package fsync flushes written trie files to stable storage.
package fsync

import "os"

// Data flushes the contents of f, skipping metadata (such as the
// modification time) where the platform allows it.
//
// An error means the file's on-disk state is unknown; the caller must not
// publish it.
func Data(f *os.File) error {
	return fdatasync(f)
}

// Dir flushes the directory at path, making renames and newly created
// entries in it durable.
func Dir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	err = syncDir(d)
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}
