package tracefile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxglove/mcap/go/mcap"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/osi-tools/ositrace/errs"
	"github.com/osi-tools/ositrace/format"
	"github.com/osi-tools/ositrace/schema"
)

func openMCAPWriter(t *testing.T, opts ...Option) (*MCAPWriter, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trace.mcap")
	writer := NewMCAPWriter(opts...)
	require.NoError(t, writer.Open(path))
	t.Cleanup(func() { writer.Close() })

	return writer, path
}

func TestMCAPRoundTripMultiChannel(t *testing.T) {
	writer, path := openMCAPWriter(t)

	require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))
	_, err := writer.AddChannel("ground_truth", format.KindGroundTruth, nil)
	require.NoError(t, err)
	_, err = writer.AddChannel("ego_view", format.KindSensorView, nil)
	require.NoError(t, err)

	type record struct {
		topic string
		kind  format.MessageKind
		ns    uint64
	}
	records := []record{
		{"ground_truth", format.KindGroundTruth, 0},
		{"ego_view", format.KindSensorView, 5_000_000},
		{"ground_truth", format.KindGroundTruth, 10_000_000},
		{"ego_view", format.KindSensorView, 15_000_000},
	}

	for _, rec := range records {
		msg := schema.New(rec.kind)
		require.NoError(t, schema.SetTimestamp(msg, int64(rec.ns/NanosPerSecond), uint32(rec.ns%NanosPerSecond)))
		require.NoError(t, writer.WriteMessage(&Result{Message: msg, Kind: rec.kind, Channel: rec.topic}))
	}
	require.NoError(t, writer.Close())

	reader := NewMCAPReader()
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	for _, want := range records {
		require.True(t, reader.HasNext())
		result, err := reader.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, want.topic, result.Channel)
		require.Equal(t, want.kind, result.Kind)

		ns, ok := schema.TimestampNanos(result.Message)
		require.True(t, ok)
		require.Equal(t, want.ns, ns)
	}

	require.False(t, reader.HasNext())
	_, err = reader.ReadMessage()
	require.ErrorIs(t, err, io.EOF)
}

func TestMCAPWriterMetadataGate(t *testing.T) {
	writer, _ := openMCAPWriter(t)

	_, err := writer.AddChannel("ego", format.KindSensorView, nil)
	require.NoError(t, err)

	msg := schema.New(format.KindSensorView)
	err = writer.WriteMessage(&Result{Message: msg, Kind: format.KindSensorView, Channel: "ego"})
	require.ErrorIs(t, err, errs.ErrMissingMetadata)

	require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))
	require.NoError(t, writer.WriteMessage(&Result{Message: msg, Kind: format.KindSensorView, Channel: "ego"}))
}

func TestMCAPWriterRequiredMetadataValidation(t *testing.T) {
	writer, _ := openMCAPWriter(t)

	incomplete := PrepareRequiredFileMetadata()
	delete(incomplete, "min_osi_version")
	require.ErrorIs(t, writer.AddFileMetadata(TraceMetadataName, incomplete), errs.ErrMissingMetadataField)

	require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))
	require.ErrorIs(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()), errs.ErrMetadataAlreadyAdded)

	// Non-mandatory metadata records are unrestricted.
	require.NoError(t, writer.AddFileMetadata("custom", map[string]string{"key": "value"}))
	require.NoError(t, writer.AddFileMetadata("custom", map[string]string{"key": "other"}))
}

func TestMCAPWriterChannelRules(t *testing.T) {
	writer, _ := openMCAPWriter(t)

	id, err := writer.AddChannel("ego", format.KindSensorView, nil)
	require.NoError(t, err)

	// Idempotent re-add with the same kind returns the original id.
	again, err := writer.AddChannel("ego", format.KindSensorView, nil)
	require.NoError(t, err)
	require.Equal(t, id, again)

	// Re-add with a different kind is a conflict.
	_, err = writer.AddChannel("ego", format.KindGroundTruth, nil)
	require.ErrorIs(t, err, errs.ErrTopicConflict)

	_, err = writer.AddChannel("", format.KindSensorView, nil)
	require.ErrorIs(t, err, errs.ErrEmptyTopic)

	_, err = writer.AddChannel("other", format.KindUnknown, nil)
	require.ErrorIs(t, err, errs.ErrUnknownMessageKind)
}

func TestMCAPWriterUnregisteredTopic(t *testing.T) {
	writer, _ := openMCAPWriter(t)
	require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))

	msg := schema.New(format.KindSensorView)
	err := writer.WriteMessage(&Result{Message: msg, Kind: format.KindSensorView, Channel: "nope"})
	require.ErrorIs(t, err, errs.ErrTopicNotRegistered)

	err = writer.WriteMessage(&Result{Message: msg, Kind: format.KindSensorView})
	require.ErrorIs(t, err, errs.ErrEmptyTopic)
}

func TestMCAPSchemaDeduplication(t *testing.T) {
	writer, path := openMCAPWriter(t)

	require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))
	_, err := writer.AddChannel("front", format.KindSensorView, nil)
	require.NoError(t, err)
	_, err = writer.AddChannel("rear", format.KindSensorView, nil)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	// Two channels of the same kind share one schema record.
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	raw, err := mcap.NewReader(file)
	require.NoError(t, err)
	info, err := raw.Info()
	require.NoError(t, err)
	require.Len(t, info.Schemas, 1)
	require.Len(t, info.Channels, 2)
}

// writeForeignMCAP writes a container with one foreign-schema channel
// and one native channel, simulating a recording tool that mixes trace
// messages with other data.
func writeForeignMCAP(t *testing.T, path string) {
	t.Helper()

	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w, err := mcap.NewWriter(file, &mcap.WriterOptions{Chunked: true, ChunkSize: 1024 * 1024})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(&mcap.Header{}))

	require.NoError(t, w.WriteSchema(&mcap.Schema{
		ID: 1, Name: "foxglove.CompressedImage", Encoding: "jsonschema", Data: []byte("{}"),
	}))
	require.NoError(t, w.WriteChannel(&mcap.Channel{
		ID: 1, SchemaID: 1, Topic: "camera", MessageEncoding: "json",
	}))

	descriptorSet, err := schema.FileDescriptorSet(format.KindSensorView)
	require.NoError(t, err)
	require.NoError(t, w.WriteSchema(&mcap.Schema{
		ID: 2, Name: string(schema.FullName(format.KindSensorView)), Encoding: schema.Encoding, Data: descriptorSet,
	}))
	require.NoError(t, w.WriteChannel(&mcap.Channel{
		ID: 2, SchemaID: 2, Topic: "ego", MessageEncoding: schema.Encoding,
	}))

	require.NoError(t, w.WriteMessage(&mcap.Message{ChannelID: 1, LogTime: 1, Data: []byte(`{}`)}))

	msg := schema.New(format.KindSensorView)
	require.NoError(t, schema.SetTimestamp(msg, 1, 0))
	data, err := proto.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(&mcap.Message{ChannelID: 2, LogTime: 2, Data: data}))

	require.NoError(t, w.Close())
}

func TestMCAPReaderSkipsForeignSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.mcap")
	writeForeignMCAP(t, path)

	reader := NewMCAPReader()
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	result, err := reader.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, format.KindSensorView, result.Kind)
	require.Equal(t, "ego", result.Channel)

	_, err = reader.ReadMessage()
	require.ErrorIs(t, err, io.EOF)
}

func TestMCAPReaderForeignSchemaFatalWhenSkippingDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.mcap")
	writeForeignMCAP(t, path)

	reader := NewMCAPReader(WithSkipNonNative(false))
	require.NoError(t, reader.Open(path))
	defer reader.Close()

	_, err := reader.ReadMessage()
	require.ErrorIs(t, err, errs.ErrUnsupportedSchema)
}

func TestMCAPCompressionOptions(t *testing.T) {
	for _, compression := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionLZ4,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "trace.mcap")

			writer := NewMCAPWriter(WithCompression(compression), WithChunkSize(MinChunkSize))
			require.NoError(t, writer.Open(path))
			require.NoError(t, writer.AddFileMetadata(TraceMetadataName, PrepareRequiredFileMetadata()))
			_, err := writer.AddChannel("ego", format.KindSensorView, nil)
			require.NoError(t, err)

			for i := 0; i < 10; i++ {
				msg := schema.New(format.KindSensorView)
				require.NoError(t, schema.SetTimestamp(msg, int64(i+1), 0))
				require.NoError(t, writer.WriteMessage(&Result{
					Message: msg, Kind: format.KindSensorView, Channel: "ego",
				}))
			}
			require.NoError(t, writer.Close())

			reader := NewMCAPReader()
			require.NoError(t, reader.Open(path))
			defer reader.Close()

			count := 0
			for reader.HasNext() {
				_, err := reader.ReadMessage()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				count++
			}
			require.Equal(t, 10, count)
		})
	}
}
