package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst through a temp file and carries over the source
// modification time. An existing dst is replaced.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmpFile := dst + ".tmp"
	out, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}

	if err = out.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err = os.Chtimes(tmpFile, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, dst)
}

// Exists reports whether path exists, regardless of type.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
