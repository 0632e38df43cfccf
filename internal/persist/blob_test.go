package persist

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/kk-code-lab/redit/internal/errs"
)

func TestNavStateRoundTrip(t *testing.T) {
	state := NavState{
		Relative:  "photos/2024",
		Sort:      SortByDate,
		Ascending: false,
	}
	blob, err := EncodeNavState(state)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeNavState(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded != state {
		t.Errorf("Round trip mismatch: got %+v, want %+v", decoded, state)
	}
}

func TestNavStateRootRoundTrip(t *testing.T) {
	blob, err := EncodeNavState(NavState{Ascending: true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeNavState(blob)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Relative != "" || decoded.Sort != SortByName || !decoded.Ascending {
		t.Errorf("Unexpected decoded state: %+v", decoded)
	}
}

func TestNavStateChecksumFlip(t *testing.T) {
	blob, err := EncodeNavState(NavState{Relative: "photos/2024", Sort: SortByDate})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Flip one byte of the trailing checksum.
	blob[len(blob)-1] ^= 0xFF
	_, err = DecodeNavState(blob)
	if !errors.Is(err, errs.ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got %v", err)
	}
}

func TestNavStateCorruptBody(t *testing.T) {
	blob, err := EncodeNavState(NavState{Relative: "a/b"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	blob[6] ^= 0xFF
	if _, err := DecodeNavState(blob); err == nil {
		t.Error("Expected corrupt body to be rejected")
	}
}

func TestNavStateBadMagic(t *testing.T) {
	blob, err := EncodeNavState(NavState{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Rewrite the magic and fix the checksum so only the magic fails.
	blob[0] = 'X'
	blob = reseal(blob)
	_, err = DecodeNavState(blob)
	if !errors.Is(err, errs.ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch, got %v", err)
	}
}

func TestNavStateFutureVersion(t *testing.T) {
	blob, err := EncodeNavState(NavState{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	blob[4], blob[5] = 0xFF, 0xFF
	blob = reseal(blob)
	_, err = DecodeNavState(blob)
	if !errors.Is(err, errs.ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch, got %v", err)
	}
}

func TestNavStateTruncated(t *testing.T) {
	_, err := DecodeNavState([]byte("RN"))
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestValidateRelative(t *testing.T) {
	tests := []struct {
		relative string
		valid    bool
	}{
		{"", true},
		{"photos", true},
		{"photos/2024", true},
		{"/photos", false},
		{"photos/", false},
		{".", false},
		{"..", false},
		{"a/../b", false},
		{"a/./b", false},
		{"a//b", false},
	}
	for _, tt := range tests {
		err := ValidateRelative(tt.relative)
		if tt.valid && err != nil {
			t.Errorf("ValidateRelative(%q) = %v, want nil", tt.relative, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateRelative(%q) = nil, want error", tt.relative)
		}
	}
}

// reseal recomputes the trailing checksum after a deliberate body edit.
func reseal(blob []byte) []byte {
	body := blob[:len(blob)-4]
	out := append([]byte(nil), body...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}
