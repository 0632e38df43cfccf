//go:build !windows

package fs

// IsHidden reports whether an entry is hidden. On Unix that is the
// dotfile convention.
func IsHidden(_ string, name string) bool {
	return len(name) > 0 && name[0] == '.'
}
