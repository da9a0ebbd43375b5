package main

import (
	"log"
	"os"

	"model-release/internal/convert"

	"github.com/hashicorp/go-plugin"
)

func main() {
	log.SetOutput(os.Stderr)

	script := os.Getenv("CONVERTER_SCRIPT")
	if script == "" {
		log.Fatalf("CONVERTER_SCRIPT is not set")
	}
	python := os.Getenv("PYTHON_EXECUTABLE")
	if python == "" {
		python = "python3"
	}

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: convert.Handshake,
		Plugins: map[string]plugin.Plugin{
			convert.PluginName: &convert.ConverterPlugin{Impl: &convert.ScriptConverter{Python: python, Script: script}},
		},
	})
}
