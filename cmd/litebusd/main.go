package main

import (
	"fmt"
	"os"

	"github.com/najoast/litebus/cmd/litebusd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
