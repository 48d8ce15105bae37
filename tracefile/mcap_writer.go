package tracefile

import (
	"fmt"
	"os"
	"time"

	"github.com/foxglove/mcap/go/mcap"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/schema"
)

// MCAPWriter writes the indexed multi-channel container format. The
// chunking, compression and indexing are delegated to the container
// runtime; this writer contributes schema records, channel records and
// the mandatory trace metadata record.
//
// Usage order is enforced: Open, AddFileMetadata with the mandatory
// record (PrepareRequiredFileMetadata provides it), AddChannel per
// topic, then WriteMessage.
type MCAPWriter struct {
	opts   options
	logger *zap.Logger

	file     *os.File
	writer   *mcap.Writer
	registry *ChannelRegistry

	requiredMetadataAdded bool
	sequence              uint32
}

var _ Writer = (*MCAPWriter)(nil)

// NewMCAPWriter creates an unopened multi-channel trace writer.
// WithChunkSize and WithCompression configure the container runtime.
func NewMCAPWriter(opts ...Option) *MCAPWriter {
	o := newOptions(opts)

	return &MCAPWriter{opts: o, logger: o.logger}
}

// Open creates the container file at path and starts the container
// runtime with the configured chunking and compression.
func (w *MCAPWriter) Open(path string) error {
	if w.file != nil {
		return fmt.Errorf("%w: cannot open %q", errs.ErrAlreadyOpen, path)
	}
	if err := checkExtension(path, format.ExtMCAP); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}

	writer, err := mcap.NewWriter(file, &mcap.WriterOptions{
		Chunked:     true,
		ChunkSize:   int64(w.opts.chunkSize),
		Compression: mcapCompression(w.opts.compression),
	})
	if err != nil {
		file.Close()

		return fmt.Errorf("starting container writer: %w", err)
	}
	if err := writer.WriteHeader(&mcap.Header{Library: "ositrace"}); err != nil {
		file.Close()

		return fmt.Errorf("writing container header: %w", err)
	}

	w.file = file
	w.writer = writer
	w.registry = NewChannelRegistry(writer, w.logger)

	return nil
}

// AddFileMetadata writes one named metadata record. The mandatory trace
// record (TraceMetadataName) is validated for its required keys, may be
// added only once, and gates all message writes.
func (w *MCAPWriter) AddFileMetadata(name string, entries map[string]string) error {
	if w.writer == nil {
		return errs.ErrNotOpen
	}

	if name == TraceMetadataName {
		if w.requiredMetadataAdded {
			return errs.ErrMetadataAlreadyAdded
		}
		for _, field := range requiredMetadataFields {
			if _, ok := entries[field]; !ok {
				return fmt.Errorf("%w: %q", errs.ErrMissingMetadataField, field)
			}
		}
		w.requiredMetadataAdded = true
	}

	if err := w.writer.WriteMetadata(&mcap.Metadata{Name: name, Metadata: entries}); err != nil {
		return fmt.Errorf("writing metadata record %q: %w", name, err)
	}

	return nil
}

// PrepareRequiredFileMetadata returns the mandatory trace metadata
// record: format version plus schema-version and serializer-version
// bounds, with a creation timestamp.
func PrepareRequiredFileMetadata() map[string]string {
	return map[string]string{
		"version":              TraceSpecVersion,
		"min_osi_version":      InterfaceVersion,
		"max_osi_version":      InterfaceVersion,
		"min_protobuf_version": SerializerVersion,
		"max_protobuf_version": SerializerVersion,
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	}
}

// AddChannel registers a topic carrying the given message kind. See
// ChannelRegistry.AddChannel.
func (w *MCAPWriter) AddChannel(topic string, kind format.MessageKind, metadata map[string]string) (uint16, error) {
	if w.writer == nil {
		return 0, errs.ErrNotOpen
	}

	return w.registry.AddChannel(topic, kind, metadata)
}

// WriteMessage appends one message to the topic named by
// result.Channel. The topic must be registered and the mandatory
// metadata record must have been added.
func (w *MCAPWriter) WriteMessage(result *Result) error {
	if w.writer == nil {
		return errs.ErrNotOpen
	}
	if result == nil || result.Message == nil {
		return fmt.Errorf("cannot write nil message")
	}
	if result.Channel == "" {
		return errs.ErrEmptyTopic
	}
	if !w.requiredMetadataAdded {
		return fmt.Errorf("%w: add the %q record before writing messages",
			errs.ErrMissingMetadata, TraceMetadataName)
	}

	channelID, ok := w.registry.ChannelID(result.Channel)
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrTopicNotRegistered, result.Channel)
	}

	data, err := proto.Marshal(result.Message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", result.Kind, err)
	}

	logTime, _ := schema.TimestampNanos(result.Message)
	w.sequence++
	if err := w.writer.WriteMessage(&mcap.Message{
		ChannelID:   channelID,
		Sequence:    w.sequence,
		LogTime:     logTime,
		PublishTime: logTime,
		Data:        data,
	}); err != nil {
		return fmt.Errorf("writing message to topic %q: %w", result.Channel, err)
	}

	return nil
}

// Close finalizes the container (summary section, index) and releases
// the file handle. Idempotent.
func (w *MCAPWriter) Close() error {
	if w.file == nil {
		return nil
	}

	var err error
	if w.writer != nil {
		err = w.writer.Close()
		w.writer = nil
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	w.file = nil
	w.registry = nil

	return err
}

// mcapCompression maps the compression enum onto the container
// runtime's format names.
func mcapCompression(c format.CompressionType) mcap.CompressionFormat {
	switch c {
	case format.CompressionZstd:
		return mcap.CompressionZSTD
	case format.CompressionLZ4:
		return mcap.CompressionLZ4
	default:
		return mcap.CompressionNone
	}
}
