package main

import (
	"os"

	"handbook/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
