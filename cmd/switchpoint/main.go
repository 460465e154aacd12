// Command switchpoint validates switch point configuration and inspects
// routing against the configured databases.
package main

import (
	"context"
	"os"

	"github.com/mesh-intelligence/switchpoint/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
