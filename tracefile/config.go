package tracefile

// Configuration constants for trace file reading, writing and analysis.
// All values are process-wide, read-only and initialized at startup;
// none of them is ever mutated, so concurrent reads need no locking.

const (
	// MaxMessageSize is the sanity bound for one serialized message.
	// Perception frames can be large, but anything beyond this indicates
	// a corrupted file or a desynchronized frame stream.
	MaxMessageSize uint32 = 512 * 1024 * 1024

	// NanosPerSecond is the number of nanoseconds in one second.
	NanosPerSecond uint64 = 1_000_000_000
)

// Chunk sizing bounds of the indexed container. Real-world playback
// testing puts the sweet spot for chunks at a few MiB to a few tens of
// MiB: smaller chunks create indexing overhead, larger ones inflate
// reader memory and make buffering coarse.
const (
	DefaultChunkSize uint64 = 16 * 1024 * 1024
	MinChunkSize     uint64 = 1024 * 1024
	MaxChunkSize     uint64 = 32 * 1024 * 1024
)

// Analyzer tuning.
const (
	// DefaultAnalysisSampleSize is the number of timestamp samples taken
	// by default when analyzing a file; 0 forces a full scan.
	DefaultAnalysisSampleSize = 1000

	// DefaultAssumedFrameRateHz substitutes the frame rate when it cannot
	// be derived from timestamps.
	DefaultAssumedFrameRateHz = 100.0

	// MinExpectedFrameRateHz and MaxExpectedFrameRateHz bound the range
	// of plausible frame rates. Rates outside the band only trigger an
	// advisory warning, never a correction.
	MinExpectedFrameRateHz = 0.1
	MaxExpectedFrameRateHz = 10000.0

	// MinMessagesForReliableAnalysis is the minimum message count below
	// which statistics are flagged as unreliable.
	MinMessagesForReliableAnalysis = 10

	// MinMessageSizeForCompression is the average message size below
	// which chunk compression overhead tends to outweigh its benefit.
	MinMessageSizeForCompression = 1024
)

// Chunk duration targets used when deriving a chunk size from timing
// statistics.
const (
	TargetChunkDurationSeconds = 1.0
	MinChunkDurationSeconds    = 0.1
	MaxChunkDurationSeconds    = 10.0
)

// Conventional metadata of the indexed container format.
const (
	// TraceMetadataName is the name of the mandatory metadata record that
	// must be written before the first message.
	TraceMetadataName = "net.asam.osi.trace"

	// TraceSpecVersion is the trace file specification version written
	// into the mandatory metadata record.
	TraceSpecVersion = "1.0.0"

	// InterfaceVersion is the schema version bound recorded in trace
	// metadata and channel metadata.
	InterfaceVersion = "3.7.0"

	// SerializerVersion is the serialization library version bound
	// recorded in trace metadata and channel metadata.
	SerializerVersion = "1.36.10"

	// Channel metadata keys auto-filled on registration.
	channelMetaInterfaceVersionKey  = "net.asam.osi.trace.channel.osi_version"
	channelMetaSerializerVersionKey = "net.asam.osi.trace.channel.protobuf_version"
)

// requiredMetadataFields are the keys the mandatory metadata record must
// carry: format version plus the schema-version and serializer-version
// bounds.
var requiredMetadataFields = []string{
	"version",
	"min_osi_version",
	"max_osi_version",
	"min_protobuf_version",
	"max_protobuf_version",
}
