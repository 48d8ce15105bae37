package tracefile

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/frame"
)

// BinaryWriter writes the single-channel binary format.
type BinaryWriter struct {
	logger *zap.Logger
	file   *os.File
	bw     *bufio.Writer
	frames *frame.Writer
}

var _ Writer = (*BinaryWriter)(nil)

// NewBinaryWriter creates an unopened binary trace writer.
func NewBinaryWriter(opts ...Option) *BinaryWriter {
	o := newOptions(opts)

	return &BinaryWriter{logger: o.logger}
}

// Open creates the binary trace file at path.
func (w *BinaryWriter) Open(path string) error {
	if w.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtBinary); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}

	w.file = file
	w.bw = bufio.NewWriter(file)
	w.frames = frame.NewWriter(w.bw, MaxMessageSize)

	return nil
}

// WriteMessage serializes the message and appends it as one frame.
// result.Channel is ignored: the format has a single implicit channel.
func (w *BinaryWriter) WriteMessage(result *Result) error {
	if w.frames == nil {
		return errs.ErrNotOpen
	}
	if result == nil || result.Message == nil {
		return fmt.Errorf("cannot write nil message")
	}

	payload, err := proto.Marshal(result.Message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", result.Kind, err)
	}

	return w.frames.WriteFrame(payload)
}

// Close flushes buffered frames and releases the file handle.
// Idempotent.
func (w *BinaryWriter) Close() error {
	if w.file == nil {
		return nil
	}

	var err error
	if w.bw != nil {
		err = w.bw.Flush()
		w.bw = nil
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	w.file = nil
	w.frames = nil

	return err
}
