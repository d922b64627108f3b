// Command tokenx manages a batched-ownership token registry stored in
// SQLite.
package main

import (
	"context"
	"os"

	"github.com/roach88/tokenx/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
