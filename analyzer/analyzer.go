// Package analyzer derives timing and throughput statistics from binary
// trace files and recommends tuning parameters for the indexed
// container format.
//
// The analysis is a read-only, two-pass scan of the frame stream. The
// first pass reads only the 4-byte length prefixes to count frames and
// accumulate size statistics. The second pass decodes timestamps from a
// sampled subset of frames using the wire scanner, without constructing
// any message. A frame whose timestamp cannot be decoded is skipped and
// scanning continues; a corrupted length prefix aborts the scan (but
// not the analysis) because every frame after it is desynchronized.
package analyzer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/frame"
	"github.com/osi-tools/ositrace/tracefile"
	"github.com/osi-tools/ositrace/wire"
)

// Statistics holds the metrics gathered from one Analyze call. A value
// is immutable once returned.
type Statistics struct {
	// FilePath is the analyzed file.
	FilePath string
	// FileSizeBytes is the total file size.
	FileSizeBytes uint64

	// MessageCount is the number of frames found by the size pass.
	MessageCount uint64
	// IsSampled is true when only a subset of frames was timestamped.
	IsSampled bool
	// TimestampSampleCount is the number of frames selected for
	// timestamp decoding.
	TimestampSampleCount uint64
	// TotalMessageCountEstimate is the estimated total message count
	// (equal to MessageCount: the size pass always walks every prefix).
	TotalMessageCountEstimate uint64

	// MinMessageSize and MaxMessageSize bound the observed frame
	// payload sizes in bytes.
	MinMessageSize uint64
	MaxMessageSize uint64
	// AvgMessageSize is the mean frame payload size in bytes.
	AvgMessageSize float64
	// TotalMessageBytes is the sum of all frame payload sizes.
	TotalMessageBytes uint64

	// FirstTimestampNs and LastTimestampNs are the first and last
	// successfully decoded sampled timestamps, in sample order.
	FirstTimestampNs uint64
	LastTimestampNs  uint64
	// DurationSeconds is the implied timeline length of the whole file.
	DurationSeconds float64
	// AvgFrameIntervalSeconds is the mean time between consecutive
	// frames across the file's implied timeline.
	AvgFrameIntervalSeconds float64

	// FrameRateHz is the estimated frame rate.
	FrameRateHz float64
	// BytesPerSecond is the estimated data rate.
	BytesPerSecond float64

	// Probe holds measured compression ratios of sampled payloads, when
	// the probe ran.
	Probe *CompressionProbe
}

// IsValid reports whether the statistics are reliable enough to base
// tuning decisions on.
func (s *Statistics) IsValid() bool {
	return s.MessageCount >= tracefile.MinMessagesForReliableAnalysis &&
		s.AvgMessageSize > 0 &&
		s.FrameRateHz > 0
}

// String renders a human-readable analysis summary.
func (s *Statistics) String() string {
	scope := fmt.Sprintf("%d messages", s.MessageCount)
	if s.IsSampled {
		scope = fmt.Sprintf("%d total messages, %d timestamp samples", s.MessageCount, s.TimestampSampleCount)
	}

	out := fmt.Sprintf(
		"file: %s\n"+
			"file size: %.2f MiB\n"+
			"messages (%s):\n"+
			"  min size: %d bytes\n"+
			"  max size: %d bytes\n"+
			"  avg size: %d bytes\n"+
			"timing:\n"+
			"  duration:   %.2f s\n"+
			"  frame rate: %.2f Hz\n"+
			"  data rate:  %.2f MiB/s",
		s.FilePath,
		float64(s.FileSizeBytes)/(1024.0*1024.0),
		scope,
		s.MinMessageSize,
		s.MaxMessageSize,
		uint64(s.AvgMessageSize),
		s.DurationSeconds,
		s.FrameRateHz,
		s.BytesPerSecond/(1024.0*1024.0),
	)
	if s.Probe != nil {
		out += "\n" + s.Probe.String()
	}
	if !s.IsValid() {
		out += "\nWARNING: analysis may be unreliable (insufficient data or invalid metrics)"
	}

	return out
}

// Analyzer scans binary trace files. The zero value is usable; New adds
// options.
type Analyzer struct {
	logger *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for scan warnings. The default
// discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Analyze scans the binary trace file at path and returns its
// statistics.
//
// sampleSize bounds the number of frames whose timestamps are decoded;
// 0 (or any value >= the frame count) samples every frame. Sampled
// indices are spread evenly and always include the first and last
// frame. It never mutates the scanned file and opens its own
// independent handle.
//
// Returns an error when the file is missing, lacks the binary trace
// extension, or yields no readable frames.
func (a *Analyzer) Analyze(path string, sampleSize uint64) (*Statistics, error) {
	logger := a.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("trace file does not exist: %w", err)
	}
	if err := checkBinaryExtension(path); err != nil {
		return nil, err
	}

	stats := &Statistics{
		FilePath:       path,
		FileSizeBytes:  uint64(info.Size()),
		MinMessageSize: math.MaxUint64,
	}

	sizes, err := a.scanSizes(path, stats, logger)
	if err != nil {
		return nil, err
	}

	selectSamples(stats, sampleSize)
	a.sampleTimestamps(path, stats, sizes, logger)
	deriveTimingMetrics(stats, logger)

	return stats, nil
}

// scanSizes is the first pass: walk every length prefix, accumulate
// size statistics, and return the per-frame sizes for the second pass.
func (a *Analyzer) scanSizes(path string, stats *Statistics, logger *zap.Logger) ([]uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer file.Close()

	frames := frame.NewReader(file, tracefile.MaxMessageSize)
	defer frames.Release()

	var sizes []uint32
	for {
		size, err := frames.NextSize()
		if err != nil {
			if err != io.EOF {
				// Abort the scan, not the analysis: everything up to
				// the corruption still describes the file.
				logScanStop(logger, "size scan stopped", stats.MessageCount, err)
			}
			break
		}

		if stats.MessageCount == 0 || uint64(size) < stats.MinMessageSize {
			stats.MinMessageSize = uint64(size)
		}
		if uint64(size) > stats.MaxMessageSize {
			stats.MaxMessageSize = uint64(size)
		}
		stats.TotalMessageBytes += uint64(size)
		stats.MessageCount++
		sizes = append(sizes, size)

		if err := frames.Skip(size); err != nil {
			logScanStop(logger, "size scan stopped", stats.MessageCount-1, err)
			break
		}
	}

	if stats.MessageCount == 0 {
		return nil, errs.ErrNoMessages
	}

	stats.TotalMessageCountEstimate = stats.MessageCount
	stats.AvgMessageSize = float64(stats.TotalMessageBytes) / float64(stats.MessageCount)

	return sizes, nil
}

// selectSamples decides how many and which frames get timestamped.
func selectSamples(stats *Statistics, sampleSize uint64) {
	total := stats.MessageCount

	if sampleSize == 0 || sampleSize >= total {
		stats.IsSampled = false
		stats.TimestampSampleCount = total

		return
	}

	stats.IsSampled = true
	if total > 1 && sampleSize < 2 {
		sampleSize = 2
	}
	stats.TimestampSampleCount = sampleSize
}

// sampleIndices returns the evenly spread frame indices to sample:
// i*(total-1)/(n-1), which always includes 0 and total-1.
func sampleIndices(total, n uint64) []uint64 {
	indices := make([]uint64, 0, n)
	if n == 1 {
		return append(indices, 0)
	}

	denom := n - 1
	for i := uint64(0); i < n; i++ {
		indices = append(indices, i*(total-1)/denom)
	}

	return indices
}

// sampleTimestamps is the second pass: decode timestamps of the
// selected frames. Per-frame decode failures are recoverable; the scan
// continues past them.
func (a *Analyzer) sampleTimestamps(path string, stats *Statistics, sizes []uint32, logger *zap.Logger) {
	file, err := os.Open(path)
	if err != nil {
		logger.Error("failed to reopen trace file for timestamp sampling", zap.Error(err))

		return
	}
	defer file.Close()

	frames := frame.NewReader(file, tracefile.MaxMessageSize)
	defer frames.Release()

	sampleAll := stats.TimestampSampleCount == stats.MessageCount
	var indices []uint64
	if !sampleAll {
		indices = sampleIndices(stats.MessageCount, stats.TimestampSampleCount)
	}

	var (
		haveFirst bool
		cursor    int
		probe     probeCollector
	)

	for index := uint64(0); index < uint64(len(sizes)); index++ {
		size, err := frames.NextSize()
		if err != nil {
			if err != io.EOF {
				logScanStop(logger, "timestamp scan stopped", index, err)
			}
			break
		}

		shouldSample := sampleAll || (cursor < len(indices) && indices[cursor] == index)
		if !shouldSample {
			if err := frames.Skip(size); err != nil {
				logScanStop(logger, "timestamp scan stopped", index, err)
				break
			}
			continue
		}

		payload, err := frames.Payload(size)
		if err != nil {
			logScanStop(logger, "timestamp scan stopped", index, err)
			break
		}
		if !sampleAll {
			cursor++
		}

		if ns, ok := wire.ExtractTimestampNanos(payload); ok {
			if !haveFirst {
				stats.FirstTimestampNs = ns
				haveFirst = true
			}
			stats.LastTimestampNs = ns
		}
		probe.add(payload)
	}

	stats.Probe = probe.finish(logger)
	if !haveFirst {
		// Leave first/last zero; deriveTimingMetrics falls back to the
		// default rate.
		stats.FirstTimestampNs = 0
		stats.LastTimestampNs = 0
	}
}

// deriveTimingMetrics computes duration, frame rate and data rate, with
// the fixed-rate fallback and the advisory plausibility band.
func deriveTimingMetrics(stats *Statistics, logger *zap.Logger) {
	haveSpan := stats.LastTimestampNs >= stats.FirstTimestampNs &&
		(stats.FirstTimestampNs != 0 || stats.LastTimestampNs != 0)

	if haveSpan && stats.MessageCount > 1 {
		durationNs := stats.LastTimestampNs - stats.FirstTimestampNs
		stats.DurationSeconds = float64(durationNs) / float64(tracefile.NanosPerSecond)

		if stats.DurationSeconds > 0 {
			// Deliberately divided by the total frame count, not the
			// sample count: the sampled span covers the whole file
			// because the endpoints are always sampled.
			stats.AvgFrameIntervalSeconds = stats.DurationSeconds / float64(stats.MessageCount-1)
			stats.FrameRateHz = 1.0 / stats.AvgFrameIntervalSeconds
			stats.BytesPerSecond = float64(stats.TotalMessageBytes) / stats.DurationSeconds
		}
	}

	if stats.FrameRateHz <= 0 || math.IsInf(stats.FrameRateHz, 0) || math.IsNaN(stats.FrameRateHz) {
		logger.Warn("could not determine frame rate from timestamps, using default assumption",
			zap.Float64("assumed_rate_hz", tracefile.DefaultAssumedFrameRateHz))
		stats.FrameRateHz = tracefile.DefaultAssumedFrameRateHz
		stats.AvgFrameIntervalSeconds = 1.0 / stats.FrameRateHz
		if stats.AvgMessageSize > 0 {
			stats.BytesPerSecond = stats.AvgMessageSize * stats.FrameRateHz
		}
	}

	// Advisory only: the reported value is never clamped.
	if stats.FrameRateHz < tracefile.MinExpectedFrameRateHz {
		logger.Warn("detected frame rate is unusually low, timestamps may be incorrect",
			zap.Float64("frame_rate_hz", stats.FrameRateHz))
	}
	if stats.FrameRateHz > tracefile.MaxExpectedFrameRateHz {
		logger.Warn("detected frame rate is unusually high, timestamps may be incorrect",
			zap.Float64("frame_rate_hz", stats.FrameRateHz))
	}
}

func logScanStop(logger *zap.Logger, what string, index uint64, err error) {
	if errors.Is(err, errs.ErrInvalidFrameSize) {
		logger.Warn(what+": implausible frame size, file may be corrupted",
			zap.Uint64("message_index", index), zap.Error(err))

		return
	}
	logger.Warn(what, zap.Uint64("message_index", index), zap.Error(err))
}

func checkBinaryExtension(path string) error {
	if filepath.Ext(path) != format.ExtBinary {
		return fmt.Errorf("%w: analysis requires a %q file", errs.ErrUnsupportedExtension, format.ExtBinary)
	}

	return nil
}
