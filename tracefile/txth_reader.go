package tracefile

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/frame"
	"github.com/osi-tools/ositrace/schema"
)

// TextReader reads the single-channel human-readable format: one text
// record per message, split on the file's first line (see
// frame.TextScanner for the heuristic and its known limitation).
type TextReader struct {
	opts    options
	logger  *zap.Logger
	kind    format.MessageKind
	file    *os.File
	records *frame.TextScanner
}

var _ Reader = (*TextReader)(nil)

// NewTextReader creates an unopened text trace reader.
func NewTextReader(opts ...Option) *TextReader {
	o := newOptions(opts)

	return &TextReader{opts: o, logger: o.logger}
}

// Open opens the text trace file, resolves the message kind and
// captures the record delimiter from the file's first line.
func (r *TextReader) Open(path string) error {
	if r.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtText); err != nil {
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

	records, err := frame.NewTextScanner(file)
	if err != nil {
		file.Close()

		return fmt.Errorf("scanning trace file: %w", err)
	}

	r.kind = kind
	r.file = file
	r.records = records

	return nil
}

// Kind returns the resolved message kind. KindUnknown before Open.
func (r *TextReader) Kind() format.MessageKind {
	return r.kind
}

// HasNext reports whether another record is available.
func (r *TextReader) HasNext() bool {
	return r.records != nil && r.records.HasNext()
}

// ReadMessage parses the next text record into a message.
func (r *TextReader) ReadMessage() (*Result, error) {
	if r.records == nil {
		return nil, errs.ErrNotOpen
	}

	record, err := r.records.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("reading record: %w", err)
	}

	msg := schema.New(r.kind)
	if err := prototext.Unmarshal([]byte(record), msg); err != nil {
		return nil, fmt.Errorf("decoding %s text record: %w", r.kind, err)
	}

	return &Result{Message: msg, Kind: r.kind}, nil
}

// Close releases the file handle. Idempotent.
func (r *TextReader) Close() error {
	r.records = nil
	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil

	return err
}
