package tracefile

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/frame"
	"github.com/osi-tools/ositrace/schema"
)

// BinaryReader reads the single-channel binary format: length-prefixed
// serialized messages of one kind, repeated to EOF.
type BinaryReader struct {
	opts   options
	logger *zap.Logger
	kind   format.MessageKind
	file   *os.File
	frames *frame.Reader
}

var _ Reader = (*BinaryReader)(nil)

// NewBinaryReader creates an unopened binary trace reader.
func NewBinaryReader(opts ...Option) *BinaryReader {
	o := newOptions(opts)

	return &BinaryReader{opts: o, logger: o.logger}
}

// Open opens the binary trace file and resolves the message kind from
// the explicit option or the filename tokens.
func (r *BinaryReader) Open(path string) error {
	if r.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtBinary); err != nil {
		return err
	}

	kind, err := resolveKind(path, r.opts.kind, r.logger)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}

	r.kind = kind
	r.file = file
	r.frames = frame.NewReader(file, MaxMessageSize)

	return nil
}

// Kind returns the resolved message kind. KindUnknown before Open.
func (r *BinaryReader) Kind() format.MessageKind {
	return r.kind
}

// HasNext reports whether at least one more frame is available.
func (r *BinaryReader) HasNext() bool {
	return r.frames != nil && r.frames.HasNext()
}

// ReadMessage reads and decodes the next frame. A zero or over-limit
// length prefix and a truncated payload are fatal: the frame stream is
// desynchronized beyond them.
func (r *BinaryReader) ReadMessage() (*Result, error) {
	if r.frames == nil {
		return nil, errs.ErrNotOpen
	}

	payload, err := r.frames.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("reading frame: %w", err)
	}

	msg := schema.New(r.kind)
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", r.kind, err)
	}

	return &Result{Message: msg, Kind: r.kind}, nil
}

// Close releases the file handle and the frame buffer. Idempotent.
func (r *BinaryReader) Close() error {
	if r.frames != nil {
		r.frames.Release()
		r.frames = nil
	}
	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil

	return err
}
