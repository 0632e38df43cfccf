package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	sniffSampleSize              = 4096
	nonPrintableThresholdPercent = 30
)

// Extensions that are binary beyond doubt; sniffing is skipped for them.
var binaryExtensions = map[string]struct{}{
	".7z": {}, ".bin": {}, ".bmp": {}, ".bz2": {}, ".class": {},
	".dll": {}, ".dylib": {}, ".exe": {}, ".gif": {}, ".gz": {},
	".ico": {}, ".jar": {}, ".jpeg": {}, ".jpg": {}, ".mp3": {},
	".mp4": {}, ".pdf": {}, ".png": {}, ".so": {}, ".tar": {},
	".wasm": {}, ".woff": {}, ".woff2": {}, ".xz": {}, ".zip": {},
}

// ReadSniffSample returns the leading bytes of path used for text/binary
// sniffing.
func ReadSniffSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, classifyOpenErr(path, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, sniffSampleSize))
}

// LooksText reports whether sample is editable text. The path, when
// given, short-circuits well-known binary extensions.
func LooksText(path string, sample []byte) bool {
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := binaryExtensions[ext]; ok {
			return false
		}
	}
	if len(sample) == 0 {
		return true
	}
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
	}
	if hasUnicodeBOM(sample) {
		return true
	}
	if bytes.IndexByte(sample, 0x00) != -1 {
		return false
	}
	if utf8.Valid(sample) {
		return true
	}
	nonPrintable := 0
	for _, b := range sample {
		if !isCommonTextByte(b) {
			nonPrintable++
		}
	}
	return nonPrintable*100/len(sample) < nonPrintableThresholdPercent
}

func hasUnicodeBOM(sample []byte) bool {
	if len(sample) >= 3 && sample[0] == 0xEF && sample[1] == 0xBB && sample[2] == 0xBF {
		return true
	}
	if len(sample) >= 2 {
		if (sample[0] == 0xFF && sample[1] == 0xFE) || (sample[0] == 0xFE && sample[1] == 0xFF) {
			return true
		}
	}
	return false
}

func isCommonTextByte(b byte) bool {
	switch {
	case b == '\t' || b == '\n' || b == '\r':
		return true
	case b >= 0x20 && b <= 0x7E:
		return true
	case b >= 0x80:
		return true
	default:
		return false
	}
}
