// Command agentops orchestrates multi-phase autonomous agent operations.
package main

import (
	"os"

	"github.com/Iron-Ham/agentops/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
