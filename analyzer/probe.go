package analyzer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/osi-tools/ositrace/compress"
	"github.com/osi-tools/ositrace/format"
)

// maxProbeBytes caps the total payload volume fed to the compression
// probe. Sampled frames past the cap are not probed.
const maxProbeBytes = 4 * 1024 * 1024

// CompressionProbe holds measured compression ratios over the sampled
// payloads. Ratios are compressed/original, so lower is better and 1.0
// means incompressible.
type CompressionProbe struct {
	// SampledBytes is the payload volume the ratios were measured on.
	SampledBytes uint64
	// ZstdRatio and LZ4Ratio are the measured ratios per codec.
	ZstdRatio float64
	LZ4Ratio  float64
}

// String renders the probe results.
func (p *CompressionProbe) String() string {
	return fmt.Sprintf(
		"compression probe (%d bytes sampled):\n"+
			"  zstd ratio: %.2f\n"+
			"  lz4 ratio:  %.2f",
		p.SampledBytes, p.ZstdRatio, p.LZ4Ratio)
}

// Best returns the codec with the lower measured ratio, or
// CompressionNone when neither achieves meaningful reduction.
func (p *CompressionProbe) Best() format.CompressionType {
	const maxUsefulRatio = 0.95

	best := p.ZstdRatio
	choice := format.CompressionZstd
	if p.LZ4Ratio > 0 && (best <= 0 || p.LZ4Ratio < best) {
		best = p.LZ4Ratio
		choice = format.CompressionLZ4
	}
	if best <= 0 || best > maxUsefulRatio {
		return format.CompressionNone
	}

	return choice
}

// probeCollector accumulates sampled payloads during the timestamp pass
// and measures codec ratios on the combined volume at the end.
type probeCollector struct {
	data []byte
}

// add appends payload to the probe sample, truncating at the cap so the
// sample is always a contiguous prefix of the sampled frame bytes.
func (c *probeCollector) add(payload []byte) {
	remaining := maxProbeBytes - len(c.data)
	if remaining <= 0 {
		return
	}
	if len(payload) > remaining {
		payload = payload[:remaining]
	}
	c.data = append(c.data, payload...)
}

func (c *probeCollector) finish(logger *zap.Logger) *CompressionProbe {
	if len(c.data) == 0 {
		return nil
	}

	probe := &CompressionProbe{SampledBytes: uint64(len(c.data))}

	if zstdCodec, err := compress.GetCodec(format.CompressionZstd); err == nil {
		probe.ZstdRatio = measureRatio(zstdCodec, c.data, logger, "zstd")
	}
	if lz4Codec, err := compress.GetCodec(format.CompressionLZ4); err == nil {
		probe.LZ4Ratio = measureRatio(lz4Codec, c.data, logger, "lz4")
	}

	return probe
}

func measureRatio(codec compress.Codec, data []byte, logger *zap.Logger, name string) float64 {
	compressed, err := codec.Compress(data)
	if err != nil {
		logger.Warn("compression probe failed", zap.String("codec", name), zap.Error(err))

		return 0
	}

	return compress.Ratio(len(data), len(compressed))
}
