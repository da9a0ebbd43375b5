package tritonconfig

import (
	"fmt"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	marshalOptions = prototext.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	unmarshalOptions = prototext.UnmarshalOptions{
		DiscardUnknown: true,
	}
)

// Render produces the config.pbtxt text for c.
func (c ModelConfig) Render() ([]byte, error) {
	msg, err := c.toMessage()
	if err != nil {
		return nil, err
	}
	data, err := marshalOptions.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("error rendering serving config %s: %w", c.Name, err)
	}
	return data, nil
}

// Parse reads a config.pbtxt document. Entries outside the model name,
// platform, batch size and tensor declarations are skipped.
func Parse(data []byte) (ModelConfig, error) {
	msg := dynamicpb.NewMessage(modelConfigDesc)
	if err := unmarshalOptions.Unmarshal(data, msg); err != nil {
		return ModelConfig{}, fmt.Errorf("error parsing serving config: %w", err)
	}
	return fromMessage(msg), nil
}

func (c ModelConfig) toMessage() (*dynamicpb.Message, error) {
	fields := modelConfigDesc.Fields()

	msg := dynamicpb.NewMessage(modelConfigDesc)
	msg.Set(fields.ByName("name"), protoreflect.ValueOfString(c.Name))
	msg.Set(fields.ByName("platform"), protoreflect.ValueOfString(c.Platform))
	msg.Set(fields.ByName("max_batch_size"), protoreflect.ValueOfInt32(int32(c.MaxBatchSize)))

	if err := appendTensors(msg, fields.ByName("input"), c.Inputs); err != nil {
		return nil, err
	}
	if err := appendTensors(msg, fields.ByName("output"), c.Outputs); err != nil {
		return nil, err
	}
	return msg, nil
}

func appendTensors(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor, tensors []TensorConfig) error {
	list := msg.Mutable(fd).List()
	for _, t := range tensors {
		dataType := dataTypeDesc.Values().ByName(protoreflect.Name(t.DataType))
		if dataType == nil {
			return fmt.Errorf("tensor %s has unknown data type %q", t.Name, t.DataType)
		}

		tensor := list.AppendMutable().Message()
		tensorFields := tensor.Descriptor().Fields()
		tensor.Set(tensorFields.ByName("name"), protoreflect.ValueOfString(t.Name))
		tensor.Set(tensorFields.ByName("data_type"), protoreflect.ValueOfEnum(dataType.Number()))

		dims := tensor.Mutable(tensorFields.ByName("dims")).List()
		for _, d := range t.Dims {
			dims.Append(protoreflect.ValueOfInt64(d))
		}
	}
	return nil
}

func fromMessage(msg *dynamicpb.Message) ModelConfig {
	fields := modelConfigDesc.Fields()
	return ModelConfig{
		Name:         msg.Get(fields.ByName("name")).String(),
		Platform:     msg.Get(fields.ByName("platform")).String(),
		MaxBatchSize: int(msg.Get(fields.ByName("max_batch_size")).Int()),
		Inputs:       tensorsFromList(msg.Get(fields.ByName("input")).List()),
		Outputs:      tensorsFromList(msg.Get(fields.ByName("output")).List()),
	}
}

func tensorsFromList(list protoreflect.List) []TensorConfig {
	tensors := make([]TensorConfig, 0, list.Len())
	for i := range list.Len() {
		tensor := list.Get(i).Message()
		fields := tensor.Descriptor().Fields()

		var dataType string
		if v := dataTypeDesc.Values().ByNumber(tensor.Get(fields.ByName("data_type")).Enum()); v != nil {
			dataType = string(v.Name())
		}

		dimList := tensor.Get(fields.ByName("dims")).List()
		dims := make([]int64, 0, dimList.Len())
		for j := range dimList.Len() {
			dims = append(dims, dimList.Get(j).Int())
		}

		tensors = append(tensors, TensorConfig{
			Name:     tensor.Get(fields.ByName("name")).String(),
			DataType: dataType,
			Dims:     dims,
		})
	}
	return tensors
}
