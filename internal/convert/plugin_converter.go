package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/hashicorp/go-plugin"
)

// PluginConverter launches the converter plugin binary for each conversion
// and kills it afterwards, so a crashing conversion cannot take the host down.
type PluginConverter struct {
	Path string
	Args []string
	Env  []string
}

func NewPluginConverter(path string, args ...string) *PluginConverter {
	return &PluginConverter{Path: path, Args: args}
}

func (p *PluginConverter) Convert(ctx context.Context, req Request) (Response, error) {
	cmd := exec.Command(p.Path, p.Args...)
	cmd.Env = append(os.Environ(), p.Env...)

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		SyncStdout:       os.Stderr,
		SyncStderr:       os.Stderr,
	})
	defer client.Kill()

	rpcClient, err := client.Client()
	if err != nil {
		return Response{}, fmt.Errorf("error establishing RPC connection to %s: %w", p.Path, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		return Response{}, fmt.Errorf("error dispensing '%s': %w", PluginName, err)
	}

	converter, ok := raw.(Converter)
	if !ok {
		return Response{}, fmt.Errorf("dispensed interface '%s' is not a Converter (actual type: %T)", PluginName, raw)
	}

	slog.Info("converting artifact via plugin", "plugin", p.Path, "flavor", req.Flavor, "output", req.OutputPath)
	return converter.Convert(ctx, req)
}
