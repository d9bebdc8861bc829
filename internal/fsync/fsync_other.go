//go:build !linux

package fsync

import (
	"os"
	"runtime"
)

func fdatasync(f *os.File) error {
	return f.Sync()
}

func syncDir(d *os.File) error {
	if runtime.GOOS == "windows" {
		// directories cannot be flushed on Windows; renames are durable once
		// MoveFileEx returns
		return nil
	}
	return d.Sync()
}
