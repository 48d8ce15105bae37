// Package errs defines the sentinel error values shared across the
// ositrace packages.
//
// Callers should match these with errors.Is; most call sites wrap them
// with additional context using fmt.Errorf and %w.
package errs

import "errors"

// Trace file lifecycle errors.
var (
	// ErrAlreadyOpen is returned when Open is called on a reader or writer
	// that already has a file open. The existing file stays open and
	// untouched.
	ErrAlreadyOpen = errors.New("trace file already open")

	// ErrNotOpen is returned when reading or writing is attempted before a
	// successful Open, or after Close.
	ErrNotOpen = errors.New("trace file not open")

	// ErrUnsupportedExtension is returned when a path does not carry one of
	// the supported trace file extensions (.osi, .mcap, .txth).
	ErrUnsupportedExtension = errors.New("unsupported trace file extension")

	// ErrUnknownMessageKind is returned when the message kind can be
	// resolved neither from the filename tokens nor from an explicit
	// override.
	ErrUnknownMessageKind = errors.New("unable to determine message kind")
)

// Frame-level errors. These are fatal for the whole file: a corrupted
// length prefix desynchronizes every frame that follows it.
var (
	// ErrInvalidFrameSize is returned for a zero length prefix or one that
	// exceeds the configured maximum message size.
	ErrInvalidFrameSize = errors.New("invalid frame size")

	// ErrTruncatedFrame is returned when the stream ends before a frame's
	// declared payload length is satisfied.
	ErrTruncatedFrame = errors.New("truncated frame payload")
)

// Multi-channel container errors.
var (
	// ErrTopicConflict is returned when a topic is re-registered with a
	// different schema than the one it was created with.
	ErrTopicConflict = errors.New("topic already registered with a different schema")

	// ErrUnsupportedSchema is returned when a channel's declared schema is
	// not one of the supported message kinds and skipping is disabled.
	ErrUnsupportedSchema = errors.New("unsupported channel schema")

	// ErrMissingMetadata is returned when a message write is attempted
	// before the required trace metadata record has been added.
	ErrMissingMetadata = errors.New("required trace metadata not added")

	// ErrMetadataAlreadyAdded is returned when the required trace metadata
	// record is added a second time.
	ErrMetadataAlreadyAdded = errors.New("required trace metadata already added")

	// ErrMissingMetadataField is returned when the required trace metadata
	// record lacks one of its mandatory keys.
	ErrMissingMetadataField = errors.New("required trace metadata field missing")

	// ErrEmptyTopic is returned when a message is written to an empty
	// topic name.
	ErrEmptyTopic = errors.New("topic is empty")

	// ErrTopicNotRegistered is returned when a message is written to a
	// topic that has no registered channel.
	ErrTopicNotRegistered = errors.New("topic not registered")
)

// Analyzer errors.
var (
	// ErrNoMessages is returned when a file yields no readable frames at
	// all, so no statistics can be produced.
	ErrNoMessages = errors.New("no messages could be read from file")
)
