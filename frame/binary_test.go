package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osi-tools/ositrace/errs"
)

const testMaxFrameSize = 1024

func encodeFrames(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := NewWriter(&buf, testMaxFrameSize)
	for _, payload := range payloads {
		require.NoError(t, w.WriteFrame(payload))
	}

	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("first"),
		[]byte("a longer second frame payload"),
		{0x00}, // single zero byte is a valid payload
	}

	r := NewReader(bytes.NewReader(encodeFrames(t, payloads...)), testMaxFrameSize)
	defer r.Release()

	for _, want := range payloads {
		require.True(t, r.HasNext())
		got, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.False(t, r.HasNext())
	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderZeroLengthPrefixIsFatal(t *testing.T) {
	data := make([]byte, LengthPrefixSize)

	r := NewReader(bytes.NewReader(data), testMaxFrameSize)
	defer r.Release()

	_, err := r.Next()
	require.ErrorIs(t, err, errs.ErrInvalidFrameSize)
}

func TestReaderOverLimitPrefixIsFatal(t *testing.T) {
	var data [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(data[:], testMaxFrameSize+1)

	r := NewReader(bytes.NewReader(data[:]), testMaxFrameSize)
	defer r.Release()

	_, err := r.Next()
	require.ErrorIs(t, err, errs.ErrInvalidFrameSize)
}

func TestReaderTruncation(t *testing.T) {
	t.Run("mid prefix", func(t *testing.T) {
		r := NewReader(bytes.NewReader([]byte{0x05, 0x00}), testMaxFrameSize)
		defer r.Release()

		_, err := r.Next()
		require.ErrorIs(t, err, errs.ErrTruncatedFrame)
	})

	t.Run("mid payload", func(t *testing.T) {
		data := encodeFrames(t, []byte("complete payload"))
		r := NewReader(bytes.NewReader(data[:len(data)-3]), testMaxFrameSize)
		defer r.Release()

		_, err := r.Next()
		require.ErrorIs(t, err, errs.ErrTruncatedFrame)
	})
}

func TestReaderNextSizeAndSkip(t *testing.T) {
	data := encodeFrames(t, []byte("skipped"), []byte("read"))

	r := NewReader(bytes.NewReader(data), testMaxFrameSize)
	defer r.Release()

	size, err := r.NextSize()
	require.NoError(t, err)
	require.Equal(t, uint32(7), size)
	require.NoError(t, r.Skip(size))

	payload, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("read"), payload)

	_, err = r.NextSize()
	require.ErrorIs(t, err, io.EOF)
}

func TestWriterRejectsInvalidPayloads(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, testMaxFrameSize)

	require.ErrorIs(t, w.WriteFrame(nil), errs.ErrInvalidFrameSize)
	require.ErrorIs(t, w.WriteFrame([]byte{}), errs.ErrInvalidFrameSize)
	require.ErrorIs(t, w.WriteFrame(make([]byte, testMaxFrameSize+1)), errs.ErrInvalidFrameSize)
}

func TestWriterPrefixIsLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, testMaxFrameSize)
	require.NoError(t, w.WriteFrame([]byte{0xAA, 0xBB, 0xCC}))

	data := buf.Bytes()
	require.Len(t, data, LengthPrefixSize+3)
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[:LengthPrefixSize]))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, data[LengthPrefixSize:])
}
