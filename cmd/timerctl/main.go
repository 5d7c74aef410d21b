package main

import (
	"fmt"
	"os"

	"github.com/novaquark/actor-framework/cmd/timerctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
