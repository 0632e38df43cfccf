package persist

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/kk-code-lab/redit/internal/errs"
)

// Navigator state blob layout, all big-endian:
//
//	magic   [4]byte "RNAV"
//	version uint16
//	sort    uint8
//	asc     uint8
//	pathLen uint16
//	path    [pathLen]byte
//	crc32   uint32 (IEEE, over everything above)
const (
	blobMagic   = "RNAV"
	blobVersion = 1

	// Namespace and Key locate the navigator blob in the store.
	Namespace = "redit"
	Key       = "navigator"

	maxRelativeLen = 4096
)

// SortMode selects the listing comparator field. It lives here so the
// blob codec and the navigator share one definition.
type SortMode uint8

const (
	SortByName SortMode = iota
	SortByDate
	SortBySize
)

// NavState is the persisted slice of navigator state.
type NavState struct {
	Relative  string
	Sort      SortMode
	Ascending bool
}

// EncodeNavState serializes state into a checksummed blob.
func EncodeNavState(state NavState) ([]byte, error) {
	if err := ValidateRelative(state.Relative); err != nil {
		return nil, err
	}
	if len(state.Relative) > maxRelativeLen {
		return nil, fmt.Errorf("relative path %d bytes: %w", len(state.Relative), errs.ErrInvalidSize)
	}

	blob := make([]byte, 0, 4+2+1+1+2+len(state.Relative)+4)
	blob = append(blob, blobMagic...)
	blob = binary.BigEndian.AppendUint16(blob, blobVersion)
	blob = append(blob, byte(state.Sort))
	asc := byte(0)
	if state.Ascending {
		asc = 1
	}
	blob = append(blob, asc)
	blob = binary.BigEndian.AppendUint16(blob, uint16(len(state.Relative)))
	blob = append(blob, state.Relative...)
	blob = binary.BigEndian.AppendUint32(blob, crc32.ChecksumIEEE(blob))
	return blob, nil
}

// DecodeNavState parses and verifies a blob produced by EncodeNavState.
func DecodeNavState(blob []byte) (NavState, error) {
	var state NavState
	if len(blob) < 4+2+1+1+2+4 {
		return state, fmt.Errorf("state blob %d bytes: %w", len(blob), errs.ErrInvalidArgument)
	}
	body, sum := blob[:len(blob)-4], binary.BigEndian.Uint32(blob[len(blob)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return state, fmt.Errorf("state blob: %w", errs.ErrChecksumMismatch)
	}
	if string(body[:4]) != blobMagic {
		return state, fmt.Errorf("state blob magic %q: %w", body[:4], errs.ErrVersionMismatch)
	}
	if v := binary.BigEndian.Uint16(body[4:6]); v != blobVersion {
		return state, fmt.Errorf("state blob version %d: %w", v, errs.ErrVersionMismatch)
	}
	state.Sort = SortMode(body[6])
	if state.Sort > SortBySize {
		return state, fmt.Errorf("sort mode %d: %w", state.Sort, errs.ErrInvalidArgument)
	}
	state.Ascending = body[7] == 1
	pathLen := int(binary.BigEndian.Uint16(body[8:10]))
	if len(body) != 10+pathLen {
		return state, fmt.Errorf("state blob path length: %w", errs.ErrInvalidArgument)
	}
	state.Relative = string(body[10:])
	if err := ValidateRelative(state.Relative); err != nil {
		return NavState{}, err
	}
	return state, nil
}

// ValidateRelative rejects relative paths with a leading slash or with
// "." or ".." segments. The empty string (the root itself) is valid.
func ValidateRelative(relative string) error {
	if relative == "" {
		return nil
	}
	if strings.HasPrefix(relative, "/") {
		return fmt.Errorf("relative path %q: %w", relative, errs.ErrInvalidArgument)
	}
	for _, segment := range strings.Split(relative, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("relative path %q: %w", relative, errs.ErrInvalidArgument)
		}
	}
	return nil
}
