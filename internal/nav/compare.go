package nav

import (
	"sort"
	"strings"

	"github.com/kk-code-lab/redit/internal/fs"
)

// comparator returns a three-way entry comparison for the given mode and
// direction. Directories always precede files in either direction and
// compare by case-insensitive name regardless of mode. Among files the
// active mode decides, with case-insensitive name as the tiebreak; the
// direction flip is applied last, to the combined result, never per
// field.
func comparator(mode SortMode, ascending bool) func(a, b fs.Entry) int {
	return func(a, b fs.Entry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		var c int
		switch {
		case a.IsDir:
			// mode never applies to directories
		case mode == SortByDate:
			switch {
			case a.Modified.Before(b.Modified):
				c = -1
			case a.Modified.After(b.Modified):
				c = 1
			}
		case mode == SortBySize:
			switch {
			case a.Size < b.Size:
				c = -1
			case a.Size > b.Size:
				c = 1
			}
		}
		if c == 0 {
			c = compareName(a, b)
		}
		if !ascending {
			c = -c
		}
		return c
	}
}

func compareName(a, b fs.Entry) int {
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}

// sortEntries orders entries in place with the mode/direction comparator.
func sortEntries(entries []fs.Entry, mode SortMode, ascending bool) {
	cmp := comparator(mode, ascending)
	sort.SliceStable(entries, func(i, j int) bool {
		return cmp(entries[i], entries[j]) < 0
	})
}
