// Command mentora serves the OpenAI-compatible retrieval and generation API.
//
// Usage:
//
//	mentora serve --config config.yaml
//	mentora serve --lemma-dict lemmes.json
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" default:"1" help:"Start the HTTP API server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to YAML config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides config."`
	LogFormat string `help:"Log format (simple or json). Overrides config."`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("mentora"),
		kong.Description("Multi-collection RAG service with course and QCM generation."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "mentora: %v\n", err)
		os.Exit(1)
	}
}
