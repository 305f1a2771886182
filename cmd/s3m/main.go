// Command s3m uploads, downloads, and manages objects on S3-compatible
// endpoints, wiring the aws/action/engine/stream/catalog packages
// behind a cobra CLI, grounded on
// original_source/src/cli/{mod,dispatch,commands}.rs's command tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "s3m:", err)
		os.Exit(1)
	}
}
