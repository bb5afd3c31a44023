package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compile-time check that FileSystem implements Storage.
var _ Storage = (*FileSystem)(nil)

// FileSystem implements Storage using the local filesystem.
// Outputs are stored at <basePath>/<batchID>/<fileName>.
type FileSystem struct {
	basePath string
}

// NewFileSystem creates a new FileSystem storage rooted at basePath.
func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

func (fs *FileSystem) batchPath(batchID string) string {
	return filepath.Join(fs.basePath, batchID)
}

func (fs *FileSystem) outputPath(batchID, fileName string) string {
	// Base keeps path traversal out of stored names.
	return filepath.Join(fs.batchPath(batchID), filepath.Base(fileName))
}

// Store writes data to disk using atomic write (temp file + rename).
// It returns the number of bytes written.
func (fs *FileSystem) Store(batchID, fileName string, data io.Reader) (int64, error) {
	dir := fs.batchPath(batchID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Write to a temp file in the same directory for atomic rename.
	tmp, err := os.CreateTemp(dir, "output-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	dst := fs.outputPath(batchID, fileName)
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("renaming temp file to %s: %w", dst, err)
	}

	// Rename succeeded; prevent deferred cleanup from removing the final file.
	tmpPath = ""

	return n, nil
}

// Retrieve opens a stored output and returns an io.ReadCloser.
func (fs *FileSystem) Retrieve(batchID, fileName string) (io.ReadCloser, error) {
	path := fs.outputPath(batchID, fileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("output not found: %s/%s", batchID, fileName)
		}
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	return f, nil
}

// Delete removes the entire <batchID>/ directory.
// It is idempotent: deleting a non-existent batch returns no error.
func (fs *FileSystem) Delete(batchID string) error {
	dir := fs.batchPath(batchID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing directory %s: %w", dir, err)
	}
	return nil
}

// Exists checks whether an output file exists on disk.
func (fs *FileSystem) Exists(batchID, fileName string) (bool, error) {
	path := fs.outputPath(batchID, fileName)
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking file %s: %w", path, err)
}
