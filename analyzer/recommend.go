package analyzer

import (
	"fmt"

	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/tracefile"
)

// RecommendedOptions carries derived container tuning parameters, each
// with a human-readable rationale naming the statistics it was computed
// from.
type RecommendedOptions struct {
	// ChunkSizeBytes is the recommended container chunk size, clamped to
	// the supported range.
	ChunkSizeBytes uint64
	// Compression is the recommended chunk compression.
	Compression format.CompressionType
	// ChunkDurationSeconds is the timeline span one chunk is expected to
	// cover at the recommended size.
	ChunkDurationSeconds float64

	// ChunkSizeRationale and CompressionRationale explain the choices.
	ChunkSizeRationale   string
	CompressionRationale string
}

// String renders the recommendation with its rationale lines.
func (r RecommendedOptions) String() string {
	return fmt.Sprintf(
		"recommended options:\n"+
			"  chunk size:  %.2f MiB (~%.2f s per chunk)\n"+
			"    %s\n"+
			"  compression: %s\n"+
			"    %s",
		float64(r.ChunkSizeBytes)/(1024.0*1024.0),
		r.ChunkDurationSeconds,
		r.ChunkSizeRationale,
		r.Compression,
		r.CompressionRationale)
}

// RecommendOptions derives container tuning parameters from stats.
//
// targetChunkDuration is the desired timeline span per chunk in
// seconds; values outside the supported band are clamped, and 0 selects
// the default target. Unreliable statistics (see Statistics.IsValid)
// fall back to the default chunk size.
func RecommendOptions(stats *Statistics, targetChunkDuration float64) RecommendedOptions {
	if targetChunkDuration <= 0 {
		targetChunkDuration = tracefile.TargetChunkDurationSeconds
	}
	if targetChunkDuration < tracefile.MinChunkDurationSeconds {
		targetChunkDuration = tracefile.MinChunkDurationSeconds
	}
	if targetChunkDuration > tracefile.MaxChunkDurationSeconds {
		targetChunkDuration = tracefile.MaxChunkDurationSeconds
	}

	rec := RecommendedOptions{}

	if stats == nil || !stats.IsValid() {
		rec.ChunkSizeBytes = tracefile.DefaultChunkSize
		rec.Compression = format.CompressionZstd
		rec.ChunkSizeRationale = "insufficient statistics, using the default chunk size"
		rec.CompressionRationale = "insufficient statistics, using the default compression"
		rec.ChunkDurationSeconds = targetChunkDuration

		return rec
	}

	// Sizing is always avg size times rate, not the measured
	// BytesPerSecond: the measured rate divides by the full duration
	// while the frame rate divides by the gap count, and mixing the two
	// overshoots the chunk by count/(count-1).
	dataRate := stats.AvgMessageSize * stats.FrameRateHz

	chunkSize := uint64(dataRate * targetChunkDuration)
	clamped := ""
	if chunkSize < tracefile.MinChunkSize {
		chunkSize = tracefile.MinChunkSize
		clamped = ", clamped to the minimum"
	}
	if chunkSize > tracefile.MaxChunkSize {
		chunkSize = tracefile.MaxChunkSize
		clamped = ", clamped to the maximum"
	}

	rec.ChunkSizeBytes = chunkSize
	rec.ChunkDurationSeconds = float64(chunkSize) / dataRate
	rec.ChunkSizeRationale = fmt.Sprintf(
		"%.2f MiB/s data rate at %.1f Hz, targeting %.1f s per chunk%s",
		dataRate/(1024.0*1024.0), stats.FrameRateHz, targetChunkDuration, clamped)

	rec.Compression, rec.CompressionRationale = recommendCompression(stats)

	return rec
}

func recommendCompression(stats *Statistics) (format.CompressionType, string) {
	if stats.AvgMessageSize < tracefile.MinMessageSizeForCompression {
		return format.CompressionNone, fmt.Sprintf(
			"average message size %d bytes is below the %d byte threshold, compression overhead outweighs the gain",
			uint64(stats.AvgMessageSize), tracefile.MinMessageSizeForCompression)
	}

	// A probe with no successful measurement carries no signal; fall
	// through to the threshold default instead of treating the failure
	// as "incompressible".
	if stats.Probe != nil && (stats.Probe.ZstdRatio > 0 || stats.Probe.LZ4Ratio > 0) {
		best := stats.Probe.Best()
		switch best {
		case format.CompressionNone:
			return best, fmt.Sprintf(
				"probe measured ratios of %.2f (zstd) and %.2f (lz4) on %d sampled bytes, payloads are effectively incompressible",
				stats.Probe.ZstdRatio, stats.Probe.LZ4Ratio, stats.Probe.SampledBytes)
		case format.CompressionLZ4:
			return best, fmt.Sprintf(
				"probe measured a %.2f ratio on %d sampled bytes, lz4 outperformed zstd",
				stats.Probe.LZ4Ratio, stats.Probe.SampledBytes)
		default:
			return best, fmt.Sprintf(
				"probe measured a %.2f ratio on %d sampled bytes",
				stats.Probe.ZstdRatio, stats.Probe.SampledBytes)
		}
	}

	return format.CompressionZstd, fmt.Sprintf(
		"average message size %d bytes exceeds the compression threshold",
		uint64(stats.AvgMessageSize))
}
