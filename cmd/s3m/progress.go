package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// newBar renders a progressbar/v3 bar fed by the engine's/stream's
// ProgressEvent channel, the single consumer named in SPEC_FULL.md §6.
// Returns nil when quiet is set, and callers must tolerate a nil bar.
func newBar(total int64, description string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetRenderBlankState(true),
	)
}
