package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/kk-code-lab/redit/internal/errs"
)

// DefaultChunkSize is the byte size of one content chunk. Two chunks are
// resident at a time in the editor window.
const DefaultChunkSize = 4096

// ContentReader fetches one fixed-size chunk of a file by index. The
// chunk window depends on this interface so tests can substitute an
// in-memory or failing reader.
type ContentReader interface {
	ReadChunk(path string, index int64, chunkSize int) ([]byte, error)
	FileSize(path string) (int64, error)
}

// ChunkCount returns how many chunks a file of size bytes occupies.
// An empty file still occupies one (empty) chunk so that offset 0 is
// always addressable.
func ChunkCount(size int64, chunkSize int) int64 {
	if size <= 0 {
		return 1
	}
	return (size + int64(chunkSize) - 1) / int64(chunkSize)
}

// ChunkReader reads chunks directly from the filesystem.
type ChunkReader struct{}

// ReadChunk returns the bytes of chunk index, which may be shorter than
// chunkSize at end of file and empty past it.
func (ChunkReader) ReadChunk(path string, index int64, chunkSize int) ([]byte, error) {
	if index < 0 || chunkSize <= 0 {
		return nil, fmt.Errorf("read chunk %d: %w", index, errs.ErrInvalidArgument)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", path, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w: %v", path, errs.ErrIO, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	n, err := f.ReadAt(buf, index*int64(chunkSize))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s chunk %d: %w: %v", path, index, errs.ErrIO, err)
	}
	return buf[:n], nil
}

// FileSize returns the current byte size of path.
func (ChunkReader) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("stat %s: %w", path, errs.ErrNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w: %v", path, errs.ErrIO, err)
	}
	return info.Size(), nil
}
