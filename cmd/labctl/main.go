// Command labctl loads patch files into a lab graph and reports what the graph
// does with them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
