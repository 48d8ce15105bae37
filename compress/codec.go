// Package compress provides the compression codecs used when probing
// trace payloads for compressibility and when rendering recommendations
// for the indexed container format.
//
// The indexed container runtime performs its own chunk compression; the
// codecs here exist so the analyzer can measure, on real sampled
// payloads, what each supported algorithm would achieve.
package compress

import (
	"fmt"

	"github.com/osi-tools/ositrace/format"
)

// Compressor compresses one payload buffer.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller
//   - Input slice is not modified
//   - Internal encoder state may be pooled for reuse
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload compressed by the matching Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of one compression algorithm.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves the built-in Codec for the given compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// Ratio returns compressedSize/originalSize, or 0 when originalSize is
// zero. Values below 1.0 indicate effective compression.
func Ratio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0.0
	}

	return float64(compressedSize) / float64(originalSize)
}
