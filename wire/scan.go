// Package wire implements a minimal scan of the protobuf wire format
// that extracts only the nested timestamp of a serialized trace message.
//
// The scanner exists for the file analyzer, which needs timestamps from
// thousands of sampled frames without paying for full deserialization.
// It walks the top-level fields of an opaque buffer in a single linear
// pass, descends into the two conventional timestamp-carrying fields
// (2 and 10), and ignores everything else. Malformed input of any shape
// yields "not found" instead of an error: a frame whose timestamp cannot
// be decoded is a recoverable per-record condition, never a scan abort.
package wire

// Wire types of the protobuf encoding.
const (
	wireVarint          = 0
	wireFixed64         = 1
	wireLengthDelimited = 2
	wireFixed32         = 5
)

// Candidate top-level field numbers of the timestamp sub-message. All
// supported kinds store it in field 2 except HostVehicleData, which uses
// field 10.
const (
	timestampFieldStandard    = 2
	timestampFieldHostVehicle = 10
)

const nanosPerSecond = 1_000_000_000

// minScannableSize is the smallest buffer that can hold a timestamp
// sub-message: tag + length + two field/value pairs.
const minScannableSize = 6

// ExtractTimestampNanos scans one serialized message and returns its
// timestamp in nanoseconds.
//
// The scan never panics and never reads past the buffer. It returns
// ok=false for truncated or garbage input, for nanos >= 1e9, and for
// negative seconds.
func ExtractTimestampNanos(data []byte) (uint64, bool) {
	if len(data) < minScannableSize {
		return 0, false
	}

	pos := 0
	for pos < len(data) {
		tag, next, ok := readVarint(data, pos, len(data))
		if !ok {
			return 0, false
		}
		pos = next

		fieldNum := uint32(tag >> 3)
		wireType := uint32(tag & 0x07)

		switch wireType {
		case wireVarint:
			if _, pos, ok = readVarint(data, pos, len(data)); !ok {
				return 0, false
			}
		case wireFixed64:
			if pos+8 > len(data) {
				return 0, false
			}
			pos += 8
		case wireLengthDelimited:
			length, next, ok := readVarint(data, pos, len(data))
			if !ok || length > uint64(len(data)-next) {
				return 0, false
			}
			pos = next
			if fieldNum == timestampFieldStandard || fieldNum == timestampFieldHostVehicle {
				if ns, ok := parseTimestamp(data[pos : pos+int(length)]); ok {
					return ns, true
				}
			}
			pos += int(length)
		case wireFixed32:
			if pos+4 > len(data) {
				return 0, false
			}
			pos += 4
		default:
			return 0, false
		}
	}

	return 0, false
}

// parseTimestamp decodes a Timestamp sub-message: seconds in varint
// field 1, nanos in varint field 2. Unknown fields inside the
// sub-message are skipped, not rejected.
func parseTimestamp(data []byte) (uint64, bool) {
	var (
		seconds    int64
		nanos      uint32
		hasSeconds bool
		hasNanos   bool
	)

	pos := 0
	for pos < len(data) {
		tag, next, ok := readVarint(data, pos, len(data))
		if !ok {
			return 0, false
		}
		pos = next

		fieldNum := uint32(tag >> 3)
		wireType := uint32(tag & 0x07)

		switch wireType {
		case wireVarint:
			value, next, ok := readVarint(data, pos, len(data))
			if !ok {
				return 0, false
			}
			pos = next
			switch fieldNum {
			case 1:
				seconds = int64(value)
				hasSeconds = true
			case 2:
				nanos = uint32(value)
				hasNanos = true
			}
		case wireFixed64:
			if pos+8 > len(data) {
				return 0, false
			}
			pos += 8
		case wireLengthDelimited:
			length, next, ok := readVarint(data, pos, len(data))
			if !ok || length > uint64(len(data)-next) {
				return 0, false
			}
			pos = next + int(length)
		case wireFixed32:
			if pos+4 > len(data) {
				return 0, false
			}
			pos += 4
		default:
			return 0, false
		}
	}

	if !hasSeconds && !hasNanos {
		return 0, false
	}
	if nanos >= nanosPerSecond || seconds < 0 {
		return 0, false
	}

	return uint64(seconds)*nanosPerSecond + uint64(nanos), true
}

// readVarint decodes one base-128 varint from data[pos:limit]. It
// returns the decoded value and the position after it. ok is false when
// the varint is truncated or longer than 64 bits.
func readVarint(data []byte, pos, limit int) (value uint64, next int, ok bool) {
	shift := uint(0)
	for pos < limit && shift <= 63 {
		b := data[pos]
		pos++
		value |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, pos, true
		}
		shift += 7
	}

	return 0, pos, false
}
