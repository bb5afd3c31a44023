package storage

import "io"

// Storage defines the interface for processed-output blob storage.
type Storage interface {
	// Store writes output data for a batch file and returns the number
	// of bytes written.
	Store(batchID, fileName string, data io.Reader) (int64, error)

	// Retrieve returns a ReadCloser for a stored output.
	Retrieve(batchID, fileName string) (io.ReadCloser, error)

	// Delete removes every output stored for a batch.
	Delete(batchID string) error

	// Exists checks whether an output exists in storage.
	Exists(batchID, fileName string) (bool, error)
}
