package tracefile

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
)

// TextWriter writes the single-channel human-readable format. The text
// form is intended for inspection; it is not guaranteed to round-trip
// byte-identically across serialization library versions.
type TextWriter struct {
	logger  *zap.Logger
	file    *os.File
	bw      *bufio.Writer
	marshal prototext.MarshalOptions
}

var _ Writer = (*TextWriter)(nil)

// NewTextWriter creates an unopened text trace writer.
func NewTextWriter(opts ...Option) *TextWriter {
	o := newOptions(opts)

	return &TextWriter{
		logger: o.logger,
		marshal: prototext.MarshalOptions{
			Multiline: true,
			Indent:    "  ",
		},
	}
}

// Open creates the text trace file at path.
func (w *TextWriter) Open(path string) error {
	if w.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtText); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}

	w.file = file
	w.bw = bufio.NewWriter(file)

	return nil
}

// WriteMessage appends the message as one multi-line text record.
// result.Channel is ignored.
func (w *TextWriter) WriteMessage(result *Result) error {
	if w.bw == nil {
		return errs.ErrNotOpen
	}
	if result == nil || result.Message == nil {
		return fmt.Errorf("cannot write nil message")
	}

	text, err := w.marshal.Marshal(result.Message)
	if err != nil {
		return fmt.Errorf("rendering %s message: %w", result.Kind, err)
	}

	if _, err := w.bw.Write(text); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	return nil
}

// Close flushes buffered records and releases the file handle.
// Idempotent.
func (w *TextWriter) Close() error {
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

	return err
}
