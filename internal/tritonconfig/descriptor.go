package tritonconfig

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

/*
The part of the serving engine's model_config.proto (package inference) that
the release tooling reads and writes. Field numbers and enum values match the
upstream definition so that the text format is interchangeable:

	message ModelConfig {
	  string name = 1;
	  string platform = 2;
	  int32 max_batch_size = 4;
	  repeated ModelInput input = 5;
	  repeated ModelOutput output = 6;
	}
	message ModelInput  { string name = 1; DataType data_type = 2; repeated int64 dims = 4; }
	message ModelOutput { string name = 1; DataType data_type = 2; repeated int64 dims = 3; }

Everything else in a config.pbtxt is skipped when parsing.
*/

var dataTypes = []string{
	"TYPE_INVALID",
	"TYPE_BOOL",
	"TYPE_UINT8",
	"TYPE_UINT16",
	"TYPE_UINT32",
	"TYPE_UINT64",
	"TYPE_INT8",
	"TYPE_INT16",
	"TYPE_INT32",
	"TYPE_INT64",
	"TYPE_FP16",
	"TYPE_FP32",
	"TYPE_FP64",
	"TYPE_STRING",
	"TYPE_BF16",
}

var (
	modelConfigDesc protoreflect.MessageDescriptor
	dataTypeDesc    protoreflect.EnumDescriptor
)

func init() {
	file, err := protodesc.NewFile(modelConfigFile(), nil)
	if err != nil {
		panic("invalid model config descriptor: " + err.Error())
	}
	modelConfigDesc = file.Messages().ByName("ModelConfig")
	dataTypeDesc = file.Enums().ByName("DataType")
}

func modelConfigFile() *descriptorpb.FileDescriptorProto {
	values := make([]*descriptorpb.EnumValueDescriptorProto, 0, len(dataTypes))
	for i, name := range dataTypes {
		values = append(values, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(int32(i)),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("model_config.proto"),
		Package: proto.String("inference"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			{Name: proto.String("DataType"), Value: values},
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("ModelConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("platform", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("max_batch_size", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					messageField("input", 5, ".inference.ModelInput"),
					messageField("output", 6, ".inference.ModelOutput"),
				},
			},
			tensorMessage("ModelInput", 4),
			tensorMessage("ModelOutput", 3),
		},
	}
}

func tensorMessage(name string, dimsNumber int32) *descriptorpb.DescriptorProto {
	dataType := scalarField("data_type", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	dataType.TypeName = proto.String(".inference.DataType")

	dims := scalarField("dims", dimsNumber, descriptorpb.FieldDescriptorProto_TYPE_INT64)
	dims.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	return &descriptorpb.DescriptorProto{
		Name: proto.String(name),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			dataType,
			dims,
		},
	}
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
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	f.TypeName = proto.String(typeName)
	return f
}
