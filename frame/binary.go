// Package frame implements the record framing of the single-channel
// trace formats: length-prefixed binary frames and delimiter-bounded
// text records.
//
// A binary frame is a little-endian uint32 length followed by exactly
// that many payload bytes, repeated to EOF with no header or trailer.
// A zero or over-limit length prefix is fatal for the whole stream: a
// corrupted prefix desynchronizes every frame after it, so it is never
// skipped or truncated silently.
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/internal/pool"
)

// LengthPrefixSize is the size of the frame length prefix in bytes.
const LengthPrefixSize = 4

// Reader reads length-prefixed frames from a byte stream.
//
// Payload slices returned by Next and Payload are backed by a pooled
// buffer and stay valid only until the next call; callers that keep a
// payload must copy it. Release returns the buffer to the pool.
type Reader struct {
	br      *bufio.Reader
	maxSize uint32
	buf     *pool.FrameBuffer
}

// NewReader creates a frame reader over r. Frames with a length prefix
// of zero or above maxSize are rejected as fatal.
func NewReader(r io.Reader, maxSize uint32) *Reader {
	return &Reader{
		br:      bufio.NewReader(r),
		maxSize: maxSize,
		buf:     pool.GetFrameBuffer(),
	}
}

// HasNext reports whether at least one more byte is available.
func (r *Reader) HasNext() bool {
	_, err := r.br.Peek(1)

	return err == nil
}

// Next reads one complete frame and returns its payload.
//
// Returns io.EOF on a clean end of stream, errs.ErrInvalidFrameSize for
// a zero or over-limit length prefix, and errs.ErrTruncatedFrame when
// the stream ends mid-frame.
func (r *Reader) Next() ([]byte, error) {
	size, err := r.NextSize()
	if err != nil {
		return nil, err
	}

	return r.Payload(size)
}

// NextSize reads and validates the next frame's length prefix. The
// caller must consume exactly the returned number of payload bytes via
// Payload or Skip before calling NextSize again.
func (r *Reader) NextSize() (uint32, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.br, prefix[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}

		return 0, fmt.Errorf("reading frame length prefix: %w", errs.ErrTruncatedFrame)
	}

	size := binary.LittleEndian.Uint32(prefix[:])
	if size == 0 || size > r.maxSize {
		return 0, fmt.Errorf("%w: %d bytes (maximum %d)", errs.ErrInvalidFrameSize, size, r.maxSize)
	}

	return size, nil
}

// Payload reads size payload bytes of the current frame.
func (r *Reader) Payload(size uint32) ([]byte, error) {
	payload := r.buf.Payload(int(size))
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, fmt.Errorf("%w: expected %d payload bytes", errs.ErrTruncatedFrame, size)
	}

	return payload, nil
}

// Skip discards size payload bytes of the current frame.
func (r *Reader) Skip(size uint32) error {
	if _, err := r.br.Discard(int(size)); err != nil {
		return fmt.Errorf("%w: expected %d payload bytes", errs.ErrTruncatedFrame, size)
	}

	return nil
}

// Release returns the internal payload buffer to the pool. The reader
// must not be used afterwards.
func (r *Reader) Release() {
	if r.buf != nil {
		pool.PutFrameBuffer(r.buf)
		r.buf = nil
	}
}

// Writer writes length-prefixed frames to a byte stream.
type Writer struct {
	w       io.Writer
	maxSize uint32
}

// NewWriter creates a frame writer on w with the given payload size
// limit.
func NewWriter(w io.Writer, maxSize uint32) *Writer {
	return &Writer{w: w, maxSize: maxSize}
}

// WriteFrame writes one frame. Empty and over-limit payloads are
// rejected: a reader would treat their length prefix as corruption.
func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) == 0 || uint64(len(payload)) > uint64(w.maxSize) {
		return fmt.Errorf("%w: %d bytes (maximum %d)", errs.ErrInvalidFrameSize, len(payload), w.maxSize)
	}

	var prefix [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing frame length prefix: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}

	return nil
}
