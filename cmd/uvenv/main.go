// cmd/uvenv/main.go
package main

import (
	"os"

	"github.com/arc-language/uvenv/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
