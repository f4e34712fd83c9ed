// The main package for the cmvp-scraper executable.
package main

import (
	"github.com/cmvp-api/cmvp-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
