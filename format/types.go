// Package format defines the closed sets of message kinds, container
// formats and compression types used throughout ositrace, together with
// the read-only resolver tables that map filenames onto them.
//
// All tables in this package are process-wide constants initialized at
// startup and never mutated, so they are safe for concurrent reads
// without synchronization.
package format

import (
	"path/filepath"
	"strings"
)

type (
	// MessageKind identifies one of the supported top-level trace message
	// types.
	MessageKind uint8

	// CompressionType identifies a chunk compression algorithm of the
	// indexed container format.
	CompressionType uint8
)

const (
	KindUnknown                 MessageKind = iota // KindUnknown marks an unresolved message kind.
	KindGroundTruth                                // KindGroundTruth is the ground-truth world state.
	KindSensorData                                 // KindSensorData is processed sensor output.
	KindSensorView                                 // KindSensorView is raw sensor input.
	KindSensorViewConfiguration                    // KindSensorViewConfiguration configures a sensor view stream.
	KindHostVehicleData                            // KindHostVehicleData is host vehicle state.
	KindTrafficCommand                             // KindTrafficCommand commands a traffic participant.
	KindTrafficCommandUpdate                       // KindTrafficCommandUpdate reports command progress.
	KindTrafficUpdate                              // KindTrafficUpdate is a traffic participant update.
	KindMotionRequest                              // KindMotionRequest requests a motion plan.
	KindStreamingUpdate                            // KindStreamingUpdate is an incremental world update.
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone disables chunk compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd selects Zstandard chunk compression.
	CompressionLZ4  CompressionType = 0x3 // CompressionLZ4 selects LZ4 chunk compression.
)

// Supported trace file extensions.
const (
	ExtBinary = ".osi"  // single-channel binary format
	ExtMCAP   = ".mcap" // indexed multi-channel container
	ExtText   = ".txth" // single-channel human-readable text format
)

func (k MessageKind) String() string {
	switch k {
	case KindGroundTruth:
		return "GroundTruth"
	case KindSensorData:
		return "SensorData"
	case KindSensorView:
		return "SensorView"
	case KindSensorViewConfiguration:
		return "SensorViewConfiguration"
	case KindHostVehicleData:
		return "HostVehicleData"
	case KindTrafficCommand:
		return "TrafficCommand"
	case KindTrafficCommandUpdate:
		return "TrafficCommandUpdate"
	case KindTrafficUpdate:
		return "TrafficUpdate"
	case KindMotionRequest:
		return "MotionRequest"
	case KindStreamingUpdate:
		return "StreamingUpdate"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Kinds lists every concrete message kind, in enum order.
func Kinds() []MessageKind {
	return []MessageKind{
		KindGroundTruth,
		KindSensorData,
		KindSensorView,
		KindSensorViewConfiguration,
		KindHostVehicleData,
		KindTrafficCommand,
		KindTrafficCommandUpdate,
		KindTrafficUpdate,
		KindMotionRequest,
		KindStreamingUpdate,
	}
}

// filenameToken maps one filename substring onto a message kind.
type filenameToken struct {
	token string
	kind  MessageKind
}

// filenameTokens is the ordered resolver table for filename-based kind
// detection. First match wins, so "_svc_" must precede "_sv_" and
// "_tcu_" must precede "_tc_".
var filenameTokens = []filenameToken{
	{"_gt_", KindGroundTruth},
	{"_sd_", KindSensorData},
	{"_svc_", KindSensorViewConfiguration},
	{"_sv_", KindSensorView},
	{"_hvd_", KindHostVehicleData},
	{"_tcu_", KindTrafficCommandUpdate},
	{"_tc_", KindTrafficCommand},
	{"_tu_", KindTrafficUpdate},
	{"_mr_", KindMotionRequest},
	{"_su_", KindStreamingUpdate},
}

// KindFromFilename resolves the message kind from the conventional
// filename tokens (e.g. "20240101_sv_100_trace.osi" -> KindSensorView).
//
// Only the base name of the path is inspected. Returns KindUnknown when
// no token matches.
func KindFromFilename(path string) MessageKind {
	name := filepath.Base(path)
	for _, entry := range filenameTokens {
		if strings.Contains(name, entry.token) {
			return entry.kind
		}
	}

	return KindUnknown
}
