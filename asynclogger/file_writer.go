package asynclogger

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// rotationLayout is appended to the base filename of a rotated file
const rotationLayout = "20060102-150405"

// fileWriter owns the output file, the byte counter, and the rotation policy.
// It is only touched by the writer goroutine, and by Close once the writer
// has exited, so it needs no lock.
type fileWriter struct {
	file *os.File
	path string

	// written counts bytes written since the last rotation
	written int64

	syncOnDrain bool

	// now is replaceable in tests
	now func() time.Time
}

// newFileWriter opens path in append mode, creating parent directories
func newFileWriter(path string, syncOnDrain bool) (*fileWriter, error) {
	fw := &fileWriter{
		path:        path,
		syncOnDrain: syncOnDrain,
		now:         time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &FileError{Op: "mkdir", Path: path, Err: err}
	}
	if err := fw.open(path); err != nil {
		return nil, err
	}
	return fw, nil
}

// open (re)opens path fresh in append mode. path is remembered even on
// failure so the next reopen attempt targets it.
func (fw *fileWriter) open(path string) error {
	fw.path = path
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &FileError{Op: "open", Path: path, Err: err}
	}
	fw.file = file
	return nil
}

// isOpen reports whether a file handle is held
func (fw *fileWriter) isOpen() bool {
	return fw.file != nil
}

// writeBuffers writes bufs in order and adds the bytes to the rotation counter
func (fw *fileWriter) writeBuffers(bufs [][]byte) (int, error) {
	if fw.file == nil {
		return 0, &FileError{Op: "write", Path: fw.path, Err: os.ErrClosed}
	}
	n, err := writeVectored(fw.file, bufs)
	fw.written += int64(n)
	if err != nil {
		return n, &FileError{Op: "write", Path: fw.path, Err: err}
	}
	return n, nil
}

// flush hands written data to the OS; with syncOnDrain it also waits for the device
func (fw *fileWriter) flush() error {
	if fw.file == nil || !fw.syncOnDrain {
		return nil
	}
	if err := syncData(fw.file); err != nil {
		return &FileError{Op: "sync", Path: fw.path, Err: err}
	}
	return nil
}

// needsRotation reports whether more than threshold bytes were written
func (fw *fileWriter) needsRotation(threshold int64, base string) bool {
	return threshold > 0 && base != "" && fw.file != nil && fw.written > threshold
}

// rotate closes the current file, renames base to base.YYYYMMDD-HHMMSS and
// reopens base. The counter is reset even when rename or reopen fail, so the
// next attempt happens after another threshold's worth of bytes. When the
// rename fails the reopened file is the original, oversized one.
//
// Two rotations within the same second produce the same rotated name.
func (fw *fileWriter) rotate(base string) (string, error) {
	var errs []error

	if fw.file != nil {
		if err := syncData(fw.file); err != nil {
			errs = append(errs, &FileError{Op: "sync", Path: fw.path, Err: err})
		}
		if err := fw.file.Close(); err != nil {
			errs = append(errs, &FileError{Op: "close", Path: fw.path, Err: err})
		}
		fw.file = nil
	}

	rotated := base + "." + fw.now().Format(rotationLayout)
	if err := os.Rename(base, rotated); err != nil {
		errs = append(errs, &FileError{Op: "rename", Path: base, Err: err})
		rotated = ""
	}

	if err := fw.open(base); err != nil {
		errs = append(errs, err)
	}
	fw.written = 0

	return rotated, errors.Join(errs...)
}

// close syncs and closes the current file
func (fw *fileWriter) close() error {
	if fw.file == nil {
		return nil
	}
	var firstErr error
	if err := syncData(fw.file); err != nil {
		firstErr = &FileError{Op: "sync", Path: fw.path, Err: err}
	}
	if err := fw.file.Close(); err != nil && firstErr == nil {
		firstErr = &FileError{Op: "close", Path: fw.path, Err: err}
	}
	fw.file = nil
	return firstErr
}
