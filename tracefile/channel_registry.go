package tracefile

import (
	"fmt"

	"github.com/foxglove/mcap/go/mcap"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/schema"
)

// ChannelRegistry tracks the topic, schema and channel records of one
// indexed-container writer session.
//
// Invariants it enforces for the writer's lifetime:
//   - at most one schema record per fully-qualified type name
//   - one schema per topic; re-adding the same (topic, schema) pair is
//     idempotent and returns the original channel id, while re-adding a
//     topic with a different schema is a fatal conflict
type ChannelRegistry struct {
	writer *mcap.Writer
	logger *zap.Logger

	schemaIDs    map[protoreflect.FullName]uint16
	schemaPrints map[protoreflect.FullName]uint64
	channelIDs   map[string]uint16
	channelKinds map[string]format.MessageKind

	nextSchemaID  uint16
	nextChannelID uint16
}

// NewChannelRegistry creates a registry that writes schema and channel
// records through w.
func NewChannelRegistry(w *mcap.Writer, logger *zap.Logger) *ChannelRegistry {
	return &ChannelRegistry{
		writer:        w,
		logger:        logger,
		schemaIDs:     make(map[protoreflect.FullName]uint16),
		schemaPrints:  make(map[protoreflect.FullName]uint64),
		channelIDs:    make(map[string]uint16),
		channelKinds:  make(map[string]format.MessageKind),
		nextSchemaID:  1,
		nextChannelID: 1,
	}
}

// AddChannel registers a topic carrying the given message kind and
// returns its channel id. The kind's schema record (its full structural
// dependency closure, required for self-describing containers) is
// written on first use and deduplicated afterwards.
//
// metadata may be nil; the conventional schema-version and
// serializer-version channel keys are filled in unless already present.
func (r *ChannelRegistry) AddChannel(topic string, kind format.MessageKind, metadata map[string]string) (uint16, error) {
	if topic == "" {
		return 0, errs.ErrEmptyTopic
	}

	fullName := schema.FullName(kind)
	if fullName == "" {
		return 0, fmt.Errorf("%w: kind %s", errs.ErrUnknownMessageKind, kind)
	}

	if channelID, exists := r.channelIDs[topic]; exists {
		if r.channelKinds[topic] == kind {
			r.logger.Warn("topic already registered with the same message kind, returning original channel id",
				zap.String("topic", topic),
				zap.Stringer("kind", kind))

			return channelID, nil
		}

		return 0, fmt.Errorf("%w: topic %q carries %s, cannot add %s",
			errs.ErrTopicConflict, topic, r.channelKinds[topic], kind)
	}

	schemaID, err := r.ensureSchema(kind, fullName)
	if err != nil {
		return 0, err
	}

	channelMeta := make(map[string]string, len(metadata)+2)
	for key, value := range metadata {
		channelMeta[key] = value
	}
	if _, ok := channelMeta[channelMetaInterfaceVersionKey]; !ok {
		channelMeta[channelMetaInterfaceVersionKey] = InterfaceVersion
	}
	if _, ok := channelMeta[channelMetaSerializerVersionKey]; !ok {
		channelMeta[channelMetaSerializerVersionKey] = SerializerVersion
	}

	channelID := r.nextChannelID
	if err := r.writer.WriteChannel(&mcap.Channel{
		ID:              channelID,
		SchemaID:        schemaID,
		Topic:           topic,
		MessageEncoding: schema.Encoding,
		Metadata:        channelMeta,
	}); err != nil {
		return 0, fmt.Errorf("writing channel record for topic %q: %w", topic, err)
	}

	r.nextChannelID++
	r.channelIDs[topic] = channelID
	r.channelKinds[topic] = kind

	return channelID, nil
}

// ChannelID returns the channel id registered for topic.
func (r *ChannelRegistry) ChannelID(topic string) (uint16, bool) {
	id, ok := r.channelIDs[topic]

	return id, ok
}

// ensureSchema writes the kind's schema record once and returns its id.
func (r *ChannelRegistry) ensureSchema(kind format.MessageKind, fullName protoreflect.FullName) (uint16, error) {
	if id, ok := r.schemaIDs[fullName]; ok {
		// Same name must mean same structure; a diverging fingerprint
		// would silently corrupt every reader's dispatch.
		if r.schemaPrints[fullName] != schema.Fingerprint(kind) {
			return 0, fmt.Errorf("%w: schema %s re-registered with a different structure",
				errs.ErrTopicConflict, fullName)
		}

		return id, nil
	}

	descriptorSet, err := schema.FileDescriptorSet(kind)
	if err != nil {
		return 0, fmt.Errorf("building schema record: %w", err)
	}

	schemaID := r.nextSchemaID
	if err := r.writer.WriteSchema(&mcap.Schema{
		ID:       schemaID,
		Name:     string(fullName),
		Encoding: schema.Encoding,
		Data:     descriptorSet,
	}); err != nil {
		return 0, fmt.Errorf("writing schema record %s: %w", fullName, err)
	}

	r.nextSchemaID++
	r.schemaIDs[fullName] = schemaID
	r.schemaPrints[fullName] = schema.Fingerprint(kind)

	return schemaID, nil
}
