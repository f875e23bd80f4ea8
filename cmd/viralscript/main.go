package main

import (
	"os"

	"viral-script-agent/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
