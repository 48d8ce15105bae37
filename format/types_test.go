package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		name string
		path string
		want MessageKind
	}{
		{"ground truth", "20240101T120000Z_gt_370_100_urban.osi", KindGroundTruth},
		{"sensor data", "run_sd_001.osi", KindSensorData},
		{"sensor view", "run_sv_001.osi", KindSensorView},
		{"sensor view configuration", "run_svc_001.osi", KindSensorViewConfiguration},
		{"host vehicle data", "run_hvd_001.osi", KindHostVehicleData},
		{"traffic command", "run_tc_001.osi", KindTrafficCommand},
		{"traffic command update", "run_tcu_001.osi", KindTrafficCommandUpdate},
		{"traffic update", "run_tu_001.osi", KindTrafficUpdate},
		{"motion request", "run_mr_001.osi", KindMotionRequest},
		{"streaming update", "run_su_001.osi", KindStreamingUpdate},
		{"no token", "trace.osi", KindUnknown},
		{"empty", "", KindUnknown},
		{"token without underscores", "runsv001.osi", KindUnknown},
		{"only base name is inspected", "/data/_sv_/trace.osi", KindUnknown},
		{"directory token ignored, file token wins", "/data/_sv_/run_gt_001.osi", KindGroundTruth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, KindFromFilename(tt.path))
		})
	}
}

// The resolver table is ordered: longer tokens that contain a shorter
// token as a prefix must match first.
func TestKindFromFilenameTokenPrecedence(t *testing.T) {
	require.Equal(t, KindSensorViewConfiguration, KindFromFilename("run_svc_001.osi"))
	require.Equal(t, KindTrafficCommandUpdate, KindFromFilename("run_tcu_001.osi"))
}

func TestMessageKindString(t *testing.T) {
	for _, kind := range Kinds() {
		require.NotEqual(t, "Unknown", kind.String())
	}
	require.Equal(t, "Unknown", KindUnknown.String())
	require.Equal(t, "SensorView", KindSensorView.String())
	require.Equal(t, "HostVehicleData", KindHostVehicleData.String())
}

func TestCompressionTypeString(t *testing.T) {
	require.Equal(t, "None", CompressionNone.String())
	require.Equal(t, "Zstd", CompressionZstd.String())
	require.Equal(t, "LZ4", CompressionLZ4.String())
	require.Equal(t, "Unknown", CompressionType(0xFF).String())
}

func TestKindsCoversEveryKind(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 10)

	seen := make(map[MessageKind]bool, len(kinds))
	for _, kind := range kinds {
		require.NotEqual(t, KindUnknown, kind)
		require.False(t, seen[kind], "duplicate kind %s", kind)
		seen[kind] = true
	}
}
