package ports

import "io"

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// Create opens a file for streaming writes, truncating it if it exists.
	Create(path string) (io.WriteCloser, error)

	// Open opens a file for reading.
	Open(path string) (ReadSeekCloser, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}

// ReadSeekCloser is a seekable input file.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}
