package tracefile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/foxglove/mcap/go/mcap"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/schema"
)

// schemaNamespacePrefix marks schemas this reader can decode natively.
const schemaNamespacePrefix = "osi3."

// MCAPReader reads the indexed multi-channel container format,
// dispatching each record by its channel's declared schema name against
// the closed kind table.
//
// Channels with foreign schemas are skipped silently by default (see
// WithSkipNonNative); with skipping disabled they fail the read. Because
// of this, HasNext may report true when only foreign records remain.
type MCAPReader struct {
	opts   options
	logger *zap.Logger

	file     *os.File
	iterator mcap.MessageIterator

	// One raw record of lookahead backing HasNext.
	nextSchema  *mcap.Schema
	nextChannel *mcap.Channel
	nextMessage *mcap.Message
}

var _ Reader = (*MCAPReader)(nil)

// NewMCAPReader creates an unopened multi-channel trace reader.
func NewMCAPReader(opts ...Option) *MCAPReader {
	o := newOptions(opts)

	return &MCAPReader{opts: o, logger: o.logger}
}

// Open opens the container file at path.
func (r *MCAPReader) Open(path string) error {
	if r.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtMCAP); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}

	reader, err := mcap.NewReader(file)
	if err != nil {
		file.Close()

		return fmt.Errorf("opening container: %w", err)
	}
	iterator, err := reader.Messages()
	if err != nil {
		file.Close()

		return fmt.Errorf("iterating container messages: %w", err)
	}

	r.file = file
	r.iterator = iterator
	r.prefetch()

	return nil
}

// HasNext reports whether another record is available. This may be true
// even when only non-native records remain.
func (r *MCAPReader) HasNext() bool {
	return r.nextMessage != nil
}

// ReadMessage returns the next natively decodable message, skipping
// foreign-schema records when skipping is enabled. Returns io.EOF when
// the container is exhausted.
func (r *MCAPReader) ReadMessage() (*Result, error) {
	if r.file == nil {
		return nil, errs.ErrNotOpen
	}

	for r.nextMessage != nil {
		sch, ch, msg := r.nextSchema, r.nextChannel, r.nextMessage
		r.prefetch()

		kind := format.KindUnknown
		if sch != nil && sch.Encoding == schema.Encoding && strings.HasPrefix(sch.Name, schemaNamespacePrefix) {
			kind = schema.KindOfSchemaName(sch.Name)
		}
		if kind == format.KindUnknown {
			if r.opts.skipNonOSI {
				continue
			}

			name := "<none>"
			if sch != nil {
				name = sch.Name
			}

			return nil, fmt.Errorf("%w: %q on topic %q", errs.ErrUnsupportedSchema, name, ch.Topic)
		}

		decoded := schema.New(kind)
		if err := proto.Unmarshal(msg.Data, decoded); err != nil {
			return nil, fmt.Errorf("decoding %s message on topic %q: %w", kind, ch.Topic, err)
		}

		return &Result{Message: decoded, Kind: kind, Channel: ch.Topic}, nil
	}

	return nil, io.EOF
}

// Close releases the file handle. Idempotent.
func (r *MCAPReader) Close() error {
	r.iterator = nil
	r.nextSchema, r.nextChannel, r.nextMessage = nil, nil, nil
	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil

	return err
}

// prefetch pulls the next raw record into the lookahead slot. Iterator
// failures other than EOF are logged and end the stream: the container
// runtime reports them once and cannot resume past them.
func (r *MCAPReader) prefetch() {
	r.nextSchema, r.nextChannel, r.nextMessage = nil, nil, nil
	if r.iterator == nil {
		return
	}

	sch, ch, msg, err := r.iterator.Next(nil)
	if err != nil {
		if err != io.EOF {
			r.logger.Error("container read problem", zap.Error(err))
		}
		r.iterator = nil

		return
	}

	r.nextSchema, r.nextChannel, r.nextMessage = sch, ch, msg
}
