package schema

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// NanosPerSecond is the number of nanoseconds in one second.
const NanosPerSecond = 1_000_000_000

const timestampFieldName = protoreflect.Name("timestamp")

// Timestamp returns the seconds and nanos of the message's timestamp
// field. ok is false when the message carries no timestamp field or the
// field is unset.
func Timestamp(msg proto.Message) (seconds int64, nanos uint32, ok bool) {
	if msg == nil {
		return 0, 0, false
	}

	m := msg.ProtoReflect()
	fd := m.Descriptor().Fields().ByName(timestampFieldName)
	if fd == nil || fd.Kind() != protoreflect.MessageKind || !m.Has(fd) {
		return 0, 0, false
	}

	ts := m.Get(fd).Message()
	fields := ts.Descriptor().Fields()
	secondsField := fields.ByName("seconds")
	nanosField := fields.ByName("nanos")
	if secondsField == nil || nanosField == nil {
		return 0, 0, false
	}

	return ts.Get(secondsField).Int(), uint32(ts.Get(nanosField).Uint()), true
}

// TimestampNanos returns the message timestamp as nanoseconds since the
// simulation epoch. ok is false when the timestamp is unset.
func TimestampNanos(msg proto.Message) (uint64, bool) {
	seconds, nanos, ok := Timestamp(msg)
	if !ok || seconds < 0 {
		return 0, false
	}

	return uint64(seconds)*NanosPerSecond + uint64(nanos), true
}

// SetTimestamp sets the message's timestamp field.
//
// Returns an error for messages without a timestamp field, for negative
// seconds, or for nanos outside [0, 1e9).
func SetTimestamp(msg proto.Message, seconds int64, nanos uint32) error {
	if msg == nil {
		return fmt.Errorf("cannot set timestamp on nil message")
	}
	if seconds < 0 {
		return fmt.Errorf("timestamp seconds must not be negative, got %d", seconds)
	}
	if nanos >= NanosPerSecond {
		return fmt.Errorf("timestamp nanos must be below 1e9, got %d", nanos)
	}

	m := msg.ProtoReflect()
	fd := m.Descriptor().Fields().ByName(timestampFieldName)
	if fd == nil || fd.Kind() != protoreflect.MessageKind {
		return fmt.Errorf("message %s has no timestamp field", m.Descriptor().FullName())
	}

	value := m.NewField(fd)
	ts := value.Message()
	fields := ts.Descriptor().Fields()
	ts.Set(fields.ByName("seconds"), protoreflect.ValueOfInt64(seconds))
	ts.Set(fields.ByName("nanos"), protoreflect.ValueOfUint32(nanos))
	m.Set(fd, value)

	return nil
}
