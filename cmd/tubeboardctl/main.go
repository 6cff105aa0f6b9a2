// Command tubeboardctl inspects and maintains a TubeBoard data store.
//
// It opens the database directly, so stop the server before running it
// against a SQLite file.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
