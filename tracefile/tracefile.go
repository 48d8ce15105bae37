// Package tracefile reads and writes time-ordered simulation trace
// messages across three interchangeable container formats:
//
//   - .osi: single-channel binary, length-prefixed serialized frames
//   - .mcap: indexed, chunked, compressed multi-channel container
//   - .txth: single-channel human-readable text records
//
// Readers and writers share one contract: construct (directly or via
// NewReader/NewWriter), Open exactly once, drive with HasNext and
// ReadMessage or WriteMessage, then Close. Close is idempotent and safe
// on every exit path. A second Open on an open instance fails with
// errs.ErrAlreadyOpen and leaves the instance untouched.
//
// No instance is safe for concurrent use; independent instances on
// independent files are fully independent.
package tracefile

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
)

// Result is one message read from or written to a trace file.
type Result struct {
	// Message is the decoded message.
	Message proto.Message
	// Kind is the top-level message kind.
	Kind format.MessageKind
	// Channel is the topic the message belongs to. Empty for the
	// single-channel formats.
	Channel string
}

// Reader reads messages from one trace file.
type Reader interface {
	// Open opens the trace file at path. It fails if the reader already
	// has a file open, if the extension does not match the format, or if
	// the message kind cannot be resolved.
	Open(path string) error

	// HasNext reports whether another message can be read. For the
	// indexed multi-channel format this may be true even when only
	// non-native messages remain.
	HasNext() bool

	// ReadMessage reads the next message. Returns io.EOF when the file
	// is exhausted.
	ReadMessage() (*Result, error)

	// Close releases the file handle. Idempotent.
	Close() error
}

// Writer writes messages to one trace file.
type Writer interface {
	// Open creates the trace file at path. It fails if the writer
	// already has a file open or the extension does not match.
	Open(path string) error

	// WriteMessage appends one message. Single-channel formats ignore
	// result.Channel; the multi-channel format requires it to name a
	// registered topic.
	WriteMessage(result *Result) error

	// Close flushes and releases the file handle. Idempotent.
	Close() error
}

// Option configures a reader or writer before Open.
type Option func(*options)

type options struct {
	kind        format.MessageKind
	logger      *zap.Logger
	skipNonOSI  bool
	chunkSize   uint64
	compression format.CompressionType
}

func newOptions(opts []Option) options {
	o := options{
		kind:        format.KindUnknown,
		logger:      zap.NewNop(),
		skipNonOSI:  true,
		chunkSize:   DefaultChunkSize,
		compression: format.CompressionZstd,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithMessageKind overrides filename-based message kind detection.
// When the override disagrees with the filename tokens, the override
// wins and a warning is logged.
func WithMessageKind(kind format.MessageKind) Option {
	return func(o *options) { o.kind = kind }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSkipNonNative controls how the multi-channel reader treats
// channels with unrecognized schemas: skipped silently when enabled
// (the default), fatal when disabled.
func WithSkipNonNative(skip bool) Option {
	return func(o *options) { o.skipNonOSI = skip }
}

// WithChunkSize sets the chunk size of the indexed container writer.
func WithChunkSize(size uint64) Option {
	return func(o *options) { o.chunkSize = size }
}

// WithCompression sets the chunk compression of the indexed container
// writer.
func WithCompression(compression format.CompressionType) Option {
	return func(o *options) { o.compression = compression }
}

// NewReader creates a reader for the file format implied by the path's
// extension. The returned reader is not yet open; call Open(path) on it.
func NewReader(path string, opts ...Option) (Reader, error) {
	switch filepath.Ext(path) {
	case format.ExtBinary:
		return NewBinaryReader(opts...), nil
	case format.ExtMCAP:
		return NewMCAPReader(opts...), nil
	case format.ExtText:
		return NewTextReader(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedExtension, filepath.Ext(path))
	}
}

// NewWriter creates a writer for the file format implied by the path's
// extension. The returned writer is not yet open; call Open(path) on it.
func NewWriter(path string, opts ...Option) (Writer, error) {
	switch filepath.Ext(path) {
	case format.ExtBinary:
		return NewBinaryWriter(opts...), nil
	case format.ExtMCAP:
		return NewMCAPWriter(opts...), nil
	case format.ExtText:
		return NewTextWriter(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedExtension, filepath.Ext(path))
	}
}

// resolveKind applies the kind resolution rules shared by the
// single-channel formats: an explicit override wins over the filename
// tokens (with a warning when they disagree), and failing both is fatal
// with a remediation hint.
func resolveKind(path string, explicit format.MessageKind, logger *zap.Logger) (format.MessageKind, error) {
	byFilename := format.KindFromFilename(path)

	if explicit != format.KindUnknown {
		if byFilename != format.KindUnknown && byFilename != explicit {
			logger.Warn("filename suggests a different message kind than the explicit override, using the override",
				zap.String("path", path),
				zap.Stringer("filename_kind", byFilename),
				zap.Stringer("explicit_kind", explicit))
		}

		return explicit, nil
	}

	if byFilename == format.KindUnknown {
		return format.KindUnknown, fmt.Errorf(
			"%w from %q: name the file with one of the conventional kind tokens (e.g. _sv_, _gt_) or pass WithMessageKind",
			errs.ErrUnknownMessageKind, filepath.Base(path))
	}

	return byFilename, nil
}

// checkExtension verifies that path carries the expected extension.
func checkExtension(path, want string) error {
	if filepath.Ext(path) != want {
		return fmt.Errorf("%w: %q must have a %q extension", errs.ErrUnsupportedExtension, path, want)
	}

	return nil
}
