package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lodestonedb/lodestone-auth/cmd/lodestone-auth/commands"
	"github.com/lodestonedb/lodestone-auth/internal/cli/prompt"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
