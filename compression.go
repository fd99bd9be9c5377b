package recordconv

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compressionType represents the compression applied to one-shot input.
type compressionType int

const (
	// compressionNone represents no compression
	compressionNone compressionType = iota
	// compressionGZ represents gzip compression
	compressionGZ
	// compressionBZ2 represents bzip2 compression
	compressionBZ2
	// compressionXZ represents xz compression
	compressionXZ
	// compressionZSTD represents zstd compression
	compressionZSTD
)

// String returns the string representation of the compressionType.
func (ct compressionType) String() string {
	switch ct {
	case compressionNone:
		return "none"
	case compressionGZ:
		return "gzip"
	case compressionBZ2:
		return "bzip2"
	case compressionXZ:
		return "xz"
	case compressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// Container magic numbers, longest first where prefixes overlap.
var (
	magicGzip  = []byte{0x1F, 0x8B}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicXZ    = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	magicZstd  = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// detectCompression classifies input by its leading magic bytes. At least
// six bytes of prefix are needed to recognize every container.
func detectCompression(prefix []byte) compressionType {
	switch {
	case hasMagic(prefix, magicGzip):
		return compressionGZ
	case hasMagic(prefix, magicBzip2):
		return compressionBZ2
	case hasMagic(prefix, magicXZ):
		return compressionXZ
	case hasMagic(prefix, magicZstd):
		return compressionZSTD
	default:
		return compressionNone
	}
}

func hasMagic(prefix, magic []byte) bool {
	if len(prefix) < len(magic) {
		return false
	}
	for i := range magic {
		if prefix[i] != magic[i] {
			return false
		}
	}
	return true
}

// newCompressionReader wraps a reader with the decompressor for the given
// compression type. The release function frees decoder resources and is a
// no-op for formats that hold none.
func newCompressionReader(reader io.Reader, ct compressionType) (io.Reader, func() error, error) {
	release := func() error { return nil }
	var (
		wrapped io.Reader
		err     error
	)
	switch ct {
	case compressionNone:
		wrapped = reader
	case compressionGZ:
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(reader); err == nil {
			wrapped, release = zr, zr.Close
		}
	case compressionBZ2:
		wrapped = bzip2.NewReader(reader)
	case compressionXZ:
		wrapped, err = xz.NewReader(reader)
	case compressionZSTD:
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(reader); err == nil {
			wrapped = dec
			release = func() error {
				dec.Close()
				return nil
			}
		}
	default:
		return nil, nil, fmt.Errorf("unsupported compression type: %v", ct)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s input: %w", ct, err)
	}
	return wrapped, release, nil
}
