// Package patch rewrites a file by splicing untouched prefix bytes, the
// edited window content, and untouched suffix bytes through a temporary
// sibling file that is renamed over the destination.
package patch

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kk-code-lab/redit/internal/errs"
)

// Writer performs atomic window saves.
type Writer struct{}

// Write replaces the byte window implied by chunk indices [first, second]
// of path with content. Content length is free to differ from the window
// span; the file grows or shrinks accordingly. On any failure the
// temporary file is removed and the destination is left untouched.
// Returns the new file size.
func (Writer) Write(path string, content []byte, first, second int64, chunkSize int) (int64, error) {
	if path == "" || first < 0 || second < first || chunkSize <= 0 {
		return 0, fmt.Errorf("patch %q chunks [%d,%d]: %w", path, first, second, errs.ErrInvalidArgument)
	}
	windowStart, windowEnd, err := windowBytes(first, second, chunkSize)
	if err != nil {
		return 0, err
	}

	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("patch %s: %w", path, errs.ErrNotFound)
		}
		return 0, fmt.Errorf("patch %s: %w: %v", path, errs.ErrIO, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("patch %s: %w: %v", path, errs.ErrIO, err)
	}
	// The file may have shrunk since the window was loaded, and the
	// window may extend past end of file. Clamp; never fabricate a gap.
	size := info.Size()
	if windowStart > size {
		windowStart = size
	}
	if windowEnd > size {
		windowEnd = size
	}

	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("patch %s: %w: %v", path, errs.ErrIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if windowStart > 0 {
		if _, err := io.CopyN(tmp, src, windowStart); err != nil {
			cleanup()
			return 0, fmt.Errorf("patch %s prefix: %w: %v", path, errs.ErrIO, err)
		}
	}
	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return 0, fmt.Errorf("patch %s content: %w: %v", path, errs.ErrIO, err)
	}
	if windowEnd < size {
		if _, err := src.Seek(windowEnd, io.SeekStart); err != nil {
			cleanup()
			return 0, fmt.Errorf("patch %s seek: %w: %v", path, errs.ErrIO, err)
		}
		if _, err := io.Copy(tmp, src); err != nil {
			cleanup()
			return 0, fmt.Errorf("patch %s suffix: %w: %v", path, errs.ErrIO, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("patch %s sync: %w: %v", path, errs.ErrIO, err)
	}
	newSize := windowStart + int64(len(content)) + (size - windowEnd)
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("patch %s close: %w: %v", path, errs.ErrIO, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Some filesystems refuse to replace an existing destination.
		// Remove it once and retry exactly once.
		if rmErr := os.Remove(path); rmErr != nil {
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("patch %s rename: %w: %v", path, errs.ErrIO, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("patch %s rename retry: %w: %v", path, errs.ErrIO, err)
		}
	}
	return newSize, nil
}

// windowBytes converts chunk indices to a byte range, rejecting overflow.
func windowBytes(first, second int64, chunkSize int) (int64, int64, error) {
	cs := int64(chunkSize)
	if first > math.MaxInt64/cs {
		return 0, 0, fmt.Errorf("window start chunk %d: %w", first, errs.ErrInvalidSize)
	}
	start := first * cs
	// Guard the increment before the multiplication: second+1 itself
	// wraps for MaxInt64 and would sneak past the division check as a
	// negative number.
	if second == math.MaxInt64 || second+1 > math.MaxInt64/cs {
		return 0, 0, fmt.Errorf("window end chunk %d: %w", second, errs.ErrInvalidSize)
	}
	end := (second + 1) * cs
	if end < start {
		return 0, 0, fmt.Errorf("window [%d,%d): %w", start, end, errs.ErrInvalidSize)
	}
	return start, end, nil
}
