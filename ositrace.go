// Package ositrace reads, writes and analyzes simulation trace files in
// three interchangeable container formats:
//
//   - .osi: single-channel binary, length-prefixed serialized frames
//   - .mcap: indexed, chunked, compressed multi-channel container
//   - .txth: single-channel human-readable text records
//
// # Core Features
//
//   - One Reader/Writer contract across all three formats
//   - Self-describing multi-channel containers (schema records carry the
//     full structural dependency closure)
//   - Message kind resolution from conventional filename tokens
//   - Allocation-free timestamp extraction from raw serialized frames
//   - Trace analysis with chunk-size and compression recommendations
//
// # Basic Usage
//
// Reading a binary trace:
//
//	import "github.com/osi-tools/ositrace"
//
//	reader, _ := ositrace.NewReader("drive_sv_urban.osi")
//	if err := reader.Open("drive_sv_urban.osi"); err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//
//	for reader.HasNext() {
//	    result, err := reader.ReadMessage()
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(result.Kind, result.Message)
//	}
//
// Converting to the indexed container format:
//
//	writer := tracefile.NewMCAPWriter(tracefile.WithCompression(format.CompressionZstd))
//	writer.Open("drive.mcap")
//	defer writer.Close()
//	writer.AddFileMetadata(tracefile.TraceMetadataName, tracefile.PrepareRequiredFileMetadata())
//	writer.AddChannel("ego", format.KindSensorView, nil)
//	writer.WriteMessage(&tracefile.Result{Message: msg, Kind: format.KindSensorView, Channel: "ego"})
//
// Analyzing a trace for tuning parameters:
//
//	stats, _ := ositrace.Analyze("drive_sv_urban.osi")
//	fmt.Println(stats)
//	fmt.Println(analyzer.RecommendOptions(stats, 0))
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the
// tracefile and analyzer packages, simplifying the most common use
// cases. For advanced usage and fine-grained control, use those
// packages directly.
package ositrace

import (
	"github.com/osi-tools/ositrace/analyzer"
	"github.com/osi-tools/ositrace/tracefile"
)

// NewReader creates a trace reader for the format implied by the path's
// extension. The reader is not yet open; call Open(path) on it.
func NewReader(path string, opts ...tracefile.Option) (tracefile.Reader, error) {
	return tracefile.NewReader(path, opts...)
}

// NewWriter creates a trace writer for the format implied by the path's
// extension. The writer is not yet open; call Open(path) on it.
func NewWriter(path string, opts ...tracefile.Option) (tracefile.Writer, error) {
	return tracefile.NewWriter(path, opts...)
}

// Analyze scans the binary trace file at path with the default sample
// size and returns its statistics.
func Analyze(path string) (*analyzer.Statistics, error) {
	return analyzer.New().Analyze(path, tracefile.DefaultAnalysisSampleSize)
}
