package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// appendVarint encodes v as a base-128 varint.
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}

// appendTag encodes a field tag.
func appendTag(buf []byte, fieldNum, wireType uint64) []byte {
	return appendVarint(buf, fieldNum<<3|wireType)
}

// timestampSubMessage encodes a Timestamp: varint seconds in field 1,
// varint nanos in field 2.
func timestampSubMessage(seconds, nanos uint64) []byte {
	var buf []byte
	buf = appendTag(buf, 1, wireVarint)
	buf = appendVarint(buf, seconds)
	buf = appendTag(buf, 2, wireVarint)
	buf = appendVarint(buf, nanos)

	return buf
}

// messageWithTimestamp encodes a top-level message carrying a timestamp
// sub-message in the given field.
func messageWithTimestamp(fieldNum, seconds, nanos uint64) []byte {
	sub := timestampSubMessage(seconds, nanos)

	var buf []byte
	buf = appendTag(buf, fieldNum, wireLengthDelimited)
	buf = appendVarint(buf, uint64(len(sub)))

	return append(buf, sub...)
}

func TestExtractTimestampNanos(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		want   uint64
		wantOK bool
	}{
		{
			name:   "timestamp in standard field",
			data:   messageWithTimestamp(2, 12, 345_000_000),
			want:   12_345_000_000,
			wantOK: true,
		},
		{
			name:   "timestamp in host vehicle field",
			data:   messageWithTimestamp(10, 7, 500),
			want:   7_000_000_500,
			wantOK: true,
		},
		{
			name:   "zero timestamp",
			data:   messageWithTimestamp(2, 0, 0),
			want:   0,
			wantOK: true,
		},
		{
			name:   "timestamp after other fields",
			data:   append(appendVarint(appendTag(nil, 1, wireVarint), 370), messageWithTimestamp(2, 3, 9)...),
			want:   3_000_000_009,
			wantOK: true,
		},
		{
			name:   "nanos out of range",
			data:   messageWithTimestamp(2, 1, 1_000_000_000),
			wantOK: false,
		},
		{
			name:   "negative seconds",
			data:   messageWithTimestamp(2, ^uint64(0), 0), // -1 as varint
			wantOK: false,
		},
		{
			name:   "sub-message in non-timestamp field",
			data:   messageWithTimestamp(5, 1, 2),
			wantOK: false,
		},
		{
			name:   "empty sub-message",
			data:   appendVarint(appendTag(nil, 2, wireLengthDelimited), 0),
			wantOK: false,
		},
		{
			name:   "nil buffer",
			data:   nil,
			wantOK: false,
		},
		{
			name:   "length prefix past buffer end",
			data:   append(appendVarint(appendTag(nil, 2, wireLengthDelimited), 100), 0x08, 0x01),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTimestampNanos(tt.data)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

// Sub-message fields outside seconds and nanos are skipped, not
// rejected.
func TestExtractTimestampNanosSkipsUnknownSubFields(t *testing.T) {
	sub := timestampSubMessage(4, 20)
	sub = appendTag(sub, 9, wireVarint)
	sub = appendVarint(sub, 999)

	var buf []byte
	buf = appendTag(buf, 2, wireLengthDelimited)
	buf = appendVarint(buf, uint64(len(sub)))
	buf = append(buf, sub...)

	ns, ok := ExtractTimestampNanos(buf)
	require.True(t, ok)
	require.Equal(t, uint64(4_000_000_020), ns)
}

// Fixed-width top-level fields are skipped by their wire type.
func TestExtractTimestampNanosSkipsFixedWidthFields(t *testing.T) {
	var buf []byte
	buf = appendTag(buf, 3, wireFixed64)
	buf = append(buf, 1, 2, 3, 4, 5, 6, 7, 8)
	buf = appendTag(buf, 4, wireFixed32)
	buf = append(buf, 9, 9, 9, 9)
	buf = append(buf, messageWithTimestamp(2, 1, 1)...)

	ns, ok := ExtractTimestampNanos(buf)
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000_001), ns)
}

// The scan must survive arbitrary garbage without panicking or reading
// past the buffer.
func TestExtractTimestampNanosGarbageRobustness(t *testing.T) {
	garbage := [][]byte{
		{},
		{0xFF},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0x12},                         // tag with no payload
		{0x12, 0x7F},                   // length past end
		{0x0C, 0x00},                   // invalid wire type 4
		{0x07, 0x00},                   // invalid wire type 7
		{0x09, 0x01, 0x02},             // fixed64 truncated
		{0x15, 0x01, 0x02, 0x03},       // fixed32 truncated
		{0x12, 0x02, 0xFF, 0xFF},       // sub-message is a truncated varint
	}

	for _, data := range garbage {
		_, ok := ExtractTimestampNanos(data)
		require.False(t, ok, "garbage %v must not decode", data)
	}
}

func TestReadVarintOverlongInput(t *testing.T) {
	// 11 continuation bytes exceed 64 bits.
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	_, _, ok := readVarint(data, 0, len(data))
	require.False(t, ok)
}
