// The main package for the riot-api-crawler executable.
package main

import (
	"github.com/omarathon/riot-api-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
