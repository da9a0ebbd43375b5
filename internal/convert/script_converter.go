package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const maxLogTail = 4096

// ScriptConverter runs an external conversion script:
//
//	<python> <script> --request <request.json> --response <response.json>
//
// The script writes the onnx file to the request's output_path and may write a
// JSON Response.
type ScriptConverter struct {
	Python string
	Script string
}

func (s *ScriptConverter) Convert(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	workDir, err := os.MkdirTemp("", "convert-")
	if err != nil {
		return Response{}, fmt.Errorf("error creating converter work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	requestPath := filepath.Join(workDir, "request.json")
	responsePath := filepath.Join(workDir, "response.json")
	if err := WriteRequest(requestPath, req); err != nil {
		return Response{}, err
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Python, s.Script, "--request", requestPath, "--response", responsePath)
	cmd.Stdout = &output
	cmd.Stderr = &output

	slog.Info("running converter script", "python", s.Python, "script", s.Script, "flavor", req.Flavor)
	if err := cmd.Run(); err != nil {
		return Response{}, fmt.Errorf("converter script failed: %w: %s", err, tail(output.String()))
	}

	resp := Response{OutputPath: req.OutputPath}
	if data, err := os.ReadFile(responsePath); err == nil {
		if err := json.Unmarshal(data, &resp); err != nil {
			return Response{}, fmt.Errorf("error decoding converter response: %w", err)
		}
	}
	if resp.OutputPath == "" {
		resp.OutputPath = req.OutputPath
	}
	resp.Log = tail(output.String())

	if _, err := os.Stat(resp.OutputPath); err != nil {
		return Response{}, fmt.Errorf("converter reported success but produced no file at %s: %w", resp.OutputPath, err)
	}
	return resp, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLogTail {
		return "..." + s[len(s)-maxLogTail:]
	}
	return s
}
