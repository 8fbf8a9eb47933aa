package main

import (
	"os"

	"github.com/Tyrowin/gopresence/cmd/gochat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
