// Package output writes result files. Every write replaces its target atomically, so a
// failed run never leaves a truncated file behind.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileIOError reports a failure to read or replace an output file.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

// WriteAtomic streams write into a temporary file next to path and renames it over path.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return &FileIOError{Op: "mkdir", Path: path, Err: err}
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return &FileIOError{Op: "create", Path: path, Err: err}
	}
	defer pending.Cleanup()

	buf := bufio.NewWriter(pending)
	if err := write(buf); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := buf.Flush(); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &FileIOError{Op: "replace", Path: path, Err: err}
	}
	return nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadFile reads path, wrapping failures as FileIOError.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileIOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
