// Package schema declares the protobuf schemas of the supported trace
// message kinds and provides dynamic construction, timestamp access and
// self-describing schema records for them.
//
// The descriptors are assembled at startup from two virtual proto files:
//
//	osi_common.proto   - osi3.Timestamp, osi3.Identifier, osi3.InterfaceVersion
//	osi_messages.proto - the ten top-level message kinds
//
// Every top-level kind carries its timestamp in field 2, except
// HostVehicleData which uses field 10. The file analyzer's wire scanner
// relies on exactly these two field numbers.
package schema

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/osi-tools/ositrace/format"
)

// Encoding is the schema encoding name registered with the indexed
// container for every channel.
const Encoding = "protobuf"

// protoPackage is the namespace of all trace message schemas.
const protoPackage = "osi3"

var kindFullNames = map[format.MessageKind]protoreflect.FullName{
	format.KindGroundTruth:             "osi3.GroundTruth",
	format.KindSensorData:              "osi3.SensorData",
	format.KindSensorView:              "osi3.SensorView",
	format.KindSensorViewConfiguration: "osi3.SensorViewConfiguration",
	format.KindHostVehicleData:         "osi3.HostVehicleData",
	format.KindTrafficCommand:          "osi3.TrafficCommand",
	format.KindTrafficCommandUpdate:    "osi3.TrafficCommandUpdate",
	format.KindTrafficUpdate:           "osi3.TrafficUpdate",
	format.KindMotionRequest:           "osi3.MotionRequest",
	format.KindStreamingUpdate:         "osi3.StreamingUpdate",
}

var (
	kindsByFullName   map[protoreflect.FullName]format.MessageKind
	kindDescriptors   map[format.MessageKind]protoreflect.MessageDescriptor
	descriptorSets    map[format.MessageKind][]byte
	descriptorDigests map[format.MessageKind]uint64
)

func init() {
	commonFile, messagesFile := buildFileDescriptorProtos()

	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{commonFile, messagesFile},
	})
	if err != nil {
		panic(fmt.Sprintf("ositrace/schema: building descriptors: %v", err))
	}

	// The dependency closure of every top-level kind is the same two
	// files, serialized dependency-first as a FileDescriptorSet. The
	// indexed container requires this self-describing form for its
	// schema records.
	setBytes, err := proto.Marshal(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{commonFile, messagesFile},
	})
	if err != nil {
		panic(fmt.Sprintf("ositrace/schema: serializing descriptor set: %v", err))
	}
	digest := xxhash.Sum64(setBytes)

	kindsByFullName = make(map[protoreflect.FullName]format.MessageKind, len(kindFullNames))
	kindDescriptors = make(map[format.MessageKind]protoreflect.MessageDescriptor, len(kindFullNames))
	descriptorSets = make(map[format.MessageKind][]byte, len(kindFullNames))
	descriptorDigests = make(map[format.MessageKind]uint64, len(kindFullNames))

	for kind, fullName := range kindFullNames {
		desc, err := files.FindDescriptorByName(fullName)
		if err != nil {
			panic(fmt.Sprintf("ositrace/schema: missing descriptor %s: %v", fullName, err))
		}
		md, ok := desc.(protoreflect.MessageDescriptor)
		if !ok {
			panic(fmt.Sprintf("ositrace/schema: %s is not a message descriptor", fullName))
		}

		kindsByFullName[fullName] = kind
		kindDescriptors[kind] = md
		descriptorSets[kind] = setBytes
		descriptorDigests[kind] = digest
	}
}

// New creates an empty dynamic message of the given kind.
//
// Returns nil for KindUnknown or any value outside the closed kind set.
func New(kind format.MessageKind) proto.Message {
	md, ok := kindDescriptors[kind]
	if !ok {
		return nil
	}

	return dynamicpb.NewMessage(md)
}

// FullName returns the fully-qualified schema name of the kind, e.g.
// "osi3.SensorView". Returns the empty name for unsupported kinds.
func FullName(kind format.MessageKind) protoreflect.FullName {
	return kindFullNames[kind]
}

// KindOfSchemaName maps a fully-qualified schema name back onto its
// message kind. Returns KindUnknown for names outside the closed set.
func KindOfSchemaName(name string) format.MessageKind {
	return kindsByFullName[protoreflect.FullName(name)]
}

// KindOf returns the message kind of a message created by this package.
// Returns KindUnknown for foreign message types.
func KindOf(msg proto.Message) format.MessageKind {
	if msg == nil {
		return format.KindUnknown
	}

	return kindsByFullName[msg.ProtoReflect().Descriptor().FullName()]
}

// Descriptor returns the message descriptor of the kind, or nil for
// unsupported kinds.
func Descriptor(kind format.MessageKind) protoreflect.MessageDescriptor {
	return kindDescriptors[kind]
}

// FileDescriptorSet returns the serialized dependency closure describing
// the kind's schema. The returned slice is shared; callers must not
// modify it.
func FileDescriptorSet(kind format.MessageKind) ([]byte, error) {
	data, ok := descriptorSets[kind]
	if !ok {
		return nil, fmt.Errorf("no schema for message kind %s", kind)
	}

	return data, nil
}

// Fingerprint returns the xxhash64 digest of the kind's serialized
// descriptor closure. Two kinds with equal fingerprints carry
// structurally identical schema records.
func Fingerprint(kind format.MessageKind) uint64 {
	return descriptorDigests[kind]
}

// buildFileDescriptorProtos assembles the two virtual proto files.
func buildFileDescriptorProtos() (common, messages *descriptorpb.FileDescriptorProto) {
	common = &descriptorpb.FileDescriptorProto{
		Name:    proto.String("osi_common.proto"),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Timestamp"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("seconds", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					scalarField("nanos", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				},
			},
			{
				Name: proto.String("Identifier"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("value", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
				},
			},
			{
				Name: proto.String("InterfaceVersion"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("version_major", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
					scalarField("version_minor", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
					scalarField("version_patch", 3, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				},
			},
		},
	}

	// Standard layout: version in field 1, timestamp in field 2, followed
	// by kind-specific fields.
	standard := func(name string, extra ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
		fields := []*descriptorpb.FieldDescriptorProto{
			messageField("version", 1, ".osi3.InterfaceVersion"),
			messageField("timestamp", 2, ".osi3.Timestamp"),
		}
		fields = append(fields, extra...)

		return &descriptorpb.DescriptorProto{
			Name:  proto.String(name),
			Field: fields,
		}
	}

	messages = &descriptorpb.FileDescriptorProto{
		Name:       proto.String("osi_messages.proto"),
		Package:    proto.String(protoPackage),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"osi_common.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			standard("GroundTruth",
				messageField("host_vehicle_id", 3, ".osi3.Identifier")),
			standard("SensorData",
				messageField("sensor_id", 3, ".osi3.Identifier")),
			standard("SensorView",
				messageField("sensor_id", 3, ".osi3.Identifier")),
			standard("SensorViewConfiguration",
				messageField("sensor_id", 3, ".osi3.Identifier")),
			// HostVehicleData deviates from the standard layout: its
			// timestamp lives in field 10.
			{
				Name: proto.String("HostVehicleData"),
				Field: []*descriptorpb.FieldDescriptorProto{
					messageField("version", 1, ".osi3.InterfaceVersion"),
					messageField("host_vehicle_id", 3, ".osi3.Identifier"),
					messageField("timestamp", 10, ".osi3.Timestamp"),
				},
			},
			standard("TrafficCommand",
				messageField("traffic_participant_id", 3, ".osi3.Identifier")),
			standard("TrafficCommandUpdate",
				messageField("traffic_participant_id", 3, ".osi3.Identifier")),
			standard("TrafficUpdate"),
			standard("MotionRequest"),
			standard("StreamingUpdate"),
		},
	}

	return common, messages
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String(typeName),
	}
}
