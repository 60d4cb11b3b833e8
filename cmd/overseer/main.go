package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/overseer/cmd/overseer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
