package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kk-code-lab/redit/internal/errs"
	"golang.org/x/text/unicode/norm"
)

// scanBatch is how many directory entries we request per ReadDir call
// while streaming. Keeps the resident set small in windowed-raw mode.
const scanBatch = 64

// listed reports whether an entry appears in listings. System entries
// (ShouldHideFromListing) never do; hidden entries only when showHidden.
func listed(dir, name string, showHidden bool) bool {
	full := filepath.Join(dir, name)
	if ShouldHideFromListing(full, name) {
		return false
	}
	return showHidden || !IsHidden(full, name)
}

// CountEntries returns the number of listed entries in dir without
// retaining them.
func CountEntries(dir string, showHidden bool) (int, error) {
	f, err := os.Open(dir)
	if err != nil {
		return 0, classifyOpenErr(dir, err)
	}
	defer f.Close()

	total := 0
	for {
		batch, err := f.ReadDir(scanBatch)
		for _, de := range batch {
			if listed(dir, de.Name(), showHidden) {
				total++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count %s: %w: %v", dir, errs.ErrIO, err)
		}
		if len(batch) == 0 {
			break
		}
	}
	return total, nil
}

// ScanAll reads every entry of dir in one pass. Names come back
// NFC-normalized with only the type hint from the directory stream filled;
// every entry is marked NeedsStat. On error the returned slice is always
// nil, never partially filled.
func ScanAll(dir string, capacity int, showHidden bool) ([]Entry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, classifyOpenErr(dir, err)
	}
	defer f.Close()

	entries := make([]Entry, 0, capacity)
	for {
		batch, err := f.ReadDir(scanBatch)
		for _, de := range batch {
			if !listed(dir, de.Name(), showHidden) {
				continue
			}
			entries = append(entries, Entry{
				Name:      norm.NFC.String(de.Name()),
				IsDir:     de.IsDir(),
				NeedsStat: true,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w: %v", dir, errs.ErrIO, err)
		}
		if len(batch) == 0 {
			break
		}
	}
	return entries, nil
}

// ScanWindow reads up to size entries of dir starting at the start-th
// entry in enumeration order. The directory stream is consumed from its
// beginning each call, so repositioning costs O(start); that is the price
// of the bounded-memory listing mode, not a defect.
func ScanWindow(dir string, start, size int, showHidden bool) ([]Entry, error) {
	if start < 0 || size < 0 {
		return nil, fmt.Errorf("scan window %d+%d: %w", start, size, errs.ErrInvalidArgument)
	}
	f, err := os.Open(dir)
	if err != nil {
		return nil, classifyOpenErr(dir, err)
	}
	defer f.Close()

	skipped := 0
	entries := make([]Entry, 0, size)
	for len(entries) < size {
		batch, err := f.ReadDir(scanBatch)
		for _, de := range batch {
			if !listed(dir, de.Name(), showHidden) {
				continue
			}
			if skipped < start {
				skipped++
				continue
			}
			if len(entries) == size {
				break
			}
			entries = append(entries, Entry{
				Name:      norm.NFC.String(de.Name()),
				IsDir:     de.IsDir(),
				NeedsStat: true,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w: %v", dir, errs.ErrIO, err)
		}
		if len(batch) == 0 {
			break
		}
	}
	return entries, nil
}

// Stat fills the lazy fields of entry from a single stat of dir/name.
func Stat(path string, entry *Entry) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", path, errs.ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w: %v", path, errs.ErrIO, err)
	}
	entry.IsDir = info.IsDir()
	entry.Size = info.Size()
	entry.Modified = info.ModTime()
	entry.NeedsStat = false
	return nil
}

// IsDirectory reports whether path names an accessible directory.
func IsDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return false, fmt.Errorf("stat %s: %w", path, errs.ErrNotFound)
		}
		return false, fmt.Errorf("stat %s: %w: %v", path, errs.ErrIO, err)
	}
	return info.IsDir(), nil
}

func classifyOpenErr(dir string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("open %s: %w", dir, errs.ErrNotFound)
	}
	return fmt.Errorf("open %s: %w: %v", dir, errs.ErrIO, err)
}
