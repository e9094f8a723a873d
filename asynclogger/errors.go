package asynclogger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed       = errors.New("logger is closed")
	ErrMissingPath  = errors.New("LogFilePath is required")
	ErrInvalidLevel = errors.New("invalid log level")
)

// FileError represents a failed file operation on the log file.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("log file error: op=%s path=%s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
