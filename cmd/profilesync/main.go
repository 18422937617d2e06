// Command profilesync operates the profile sync layer: migrations, manual
// sync and repair, audits, the retry worker and read-model reports.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
