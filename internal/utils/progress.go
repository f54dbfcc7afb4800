package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Progress represents a byte-count progress bar using mpb
type Progress struct {
	container   *mpb.Progress
	bar         *mpb.Bar
	enabled     bool
	description string
}

var descLength = 20

// NewProgress creates a progress bar for one streaming download. The total is
// usually unknown until the response arrives; see SetTotal.
func NewProgress(description string, enabled bool) *Progress {
	isTerm := isTerminal()

	p := &Progress{
		enabled:     enabled && isTerm,
		description: description,
	}

	if p.enabled {
		// Add space before progress bar
		fmt.Fprintln(os.Stderr)

		// Create mpb container that outputs to stderr
		container := mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithWidth(64),
			mpb.WithRefreshRate(100*time.Millisecond),
		)

		bar := container.New(0,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(statistics decor.Statistics) string {
					if len(p.description) > descLength {
						return p.description[:descLength-2] + ".."
					}
					return p.description
				}, decor.WC{W: descLength, C: decor.DindentRight}),
				decor.Name("  "),
				decor.CountersKibiByte("% .1f / % .1f", decor.WC{C: decor.DindentRight}),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
			),
		)

		p.container = container
		p.bar = bar
	}

	return p
}

// SetTotal records the expected byte count once known. A non-positive total
// leaves the bar in indeterminate mode.
func (p *Progress) SetTotal(total int64) {
	if !p.enabled || p.bar == nil || total <= 0 {
		return
	}
	p.bar.SetTotal(total, false)
}

// ProxyReader wraps a response body so reads advance the bar.
func (p *Progress) ProxyReader(r io.Reader) io.ReadCloser {
	if !p.enabled || p.bar == nil {
		return io.NopCloser(r)
	}
	return p.bar.ProxyReader(r)
}

// Finish completes the progress bar and shuts down the container
func (p *Progress) Finish() {
	if !p.enabled || p.container == nil {
		return
	}

	p.bar.SetTotal(-1, true)
	p.container.Wait()

	// Add space after progress bar
	fmt.Fprintln(os.Stderr)
}

// isTerminal checks if stderr is a terminal (TTY)
func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
