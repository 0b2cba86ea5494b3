// Command mermaid-agent generates mermaid charts with LLM prompt chains.
package main

import (
	"os"

	"github.com/opencode-ai/mermaid-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
