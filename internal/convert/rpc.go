package convert

import (
	"context"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

const PluginName = "converter"

var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MODEL_RELEASE_CONVERTER",
	MagicCookieValue: "7d5b0a3e-onnx-export",
}

var PluginMap = map[string]plugin.Plugin{
	PluginName: &ConverterPlugin{},
}

// ConverterPlugin serves a Converter over go-plugin's net/rpc protocol.
type ConverterPlugin struct {
	Impl Converter
}

func (p *ConverterPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*ConverterPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCClient is the host side. net/rpc carries no context so cancellation
// stops at the call boundary; the plugin process is killed by the host.
type RPCClient struct{ client *rpc.Client }

func (c *RPCClient) Convert(ctx context.Context, req Request) (Response, error) {
	var resp Response
	call := c.client.Go("Plugin.Convert", req, &resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case done := <-call.Done:
		return resp, done.Error
	}
}

type RPCServer struct {
	Impl Converter
}

func (s *RPCServer) Convert(req Request, resp *Response) error {
	r, err := s.Impl.Convert(context.Background(), req)
	*resp = r
	return err
}
