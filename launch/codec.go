package launch

import (
	"encoding/json"

	yaml "go.yaml.in/yaml/v2"

	"github.com/kdwarn/plumgo/process"
)

// Codec marshals and unmarshals RPC message bodies (Task, TaskReply,
// ControlMessage, StatusReply) to and from the bytes that actually cross
// a Communicator. A broker-backed Communicator needs this to move
// messages over a network; InMemory round-trips through it too, so
// every RPC call here pays the same encode/decode cost a wire transport
// would, rather than quietly passing live Go values by pointer.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

func (yamlCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// JSONCodec is the default wire codec for launch RPC messages.
var JSONCodec Codec = jsonCodec{}

// YAMLCodec is an alternate wire codec, registered alongside JSONCodec
// for deployments that want a human-editable wire format (e.g. a
// plumctl operator reading raw queue contents).
var YAMLCodec Codec = yamlCodec{}

var codecsByName = map[string]Codec{
	JSONCodec.Name(): JSONCodec,
	YAMLCodec.Name(): YAMLCodec,
}

// CodecByName looks up a registered codec by its wire name ("json" or
// "yaml").
func CodecByName(name string) (Codec, bool) {
	c, ok := codecsByName[name]
	return c, ok
}

// envelope is what actually crosses a Communicator: the codec name plus
// the encoded message, so the receiving side can decode without being
// separately configured to agree on a codec in advance.
type envelope struct {
	Codec string
	Body  []byte
}

func encode(codec Codec, v any) (*envelope, error) {
	if codec == nil {
		codec = JSONCodec
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, process.NewProcessError(process.CodeCommunicatorError, "launch: encoding wire envelope", err)
	}
	return &envelope{Codec: codec.Name(), Body: data}, nil
}

func decode(env *envelope, v any) error {
	codec, ok := CodecByName(env.Codec)
	if !ok {
		return process.NewProcessError(process.CodeCommunicatorError, "launch: unknown wire codec "+env.Codec, nil)
	}
	if err := codec.Unmarshal(env.Body, v); err != nil {
		return process.NewProcessError(process.CodeCommunicatorError, "launch: decoding wire envelope", err)
	}
	return nil
}
