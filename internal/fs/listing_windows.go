//go:build windows

package fs

// ShouldHideFromListing reports whether an entry must never appear in a
// listing even with hidden entries shown, such as Windows compatibility
// junctions (system + reparse point).
func ShouldHideFromListing(fullPath, name string) bool {
	if fullPath == "" && name == "" {
		return false
	}
	attrs, err := getFileAttributes(fullPath, name)
	if err != nil {
		return false
	}
	const protectedMask = fileAttributeSystem | fileAttributeReparsePoint
	return attrs&protectedMask == protectedMask
}
