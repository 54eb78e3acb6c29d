// Command hostlinkctl is the operator-facing CLI for the host-link
// runtime: connect to a node, watch its debug console, list/fetch
// files over the chunked transfer protocol, and expose Prometheus
// metrics — replacing the teacher's bare flag-parsing main() with the
// cobra/pflag stack the rest of the example corpus uses for its CLIs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
