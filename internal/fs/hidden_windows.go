//go:build windows

package fs

// IsHidden reports whether an entry carries the Windows hidden
// attribute. Entries whose attributes cannot be read fall back to the
// dotfile convention.
func IsHidden(fullPath, name string) bool {
	attrs, err := getFileAttributes(fullPath, name)
	if err != nil {
		return len(name) > 0 && name[0] == '.'
	}
	return attrs&fileAttributeHidden != 0
}
