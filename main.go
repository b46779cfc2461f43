// The main package for the scrapers executable.
package main

import (
	"github.com/openpatata/scrapers/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
