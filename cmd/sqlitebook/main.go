// Command sqlitebook keeps named SQLite databases in a local snapshot store
// and edits them with SQL.
package main

import (
	"fmt"
	"os"

	"github.com/viant/sqlitebook/internal/cli"
)

func main() {
	app := cli.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
