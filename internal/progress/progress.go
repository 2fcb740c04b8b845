// Package progress renders a terminal progress bar for long-running
// operations. The bar is a no-op when quiet mode is on or when stderr is not
// a terminal, so callers can use it unconditionally.
package progress

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

type Bar struct {
	bar *progressbar.ProgressBar
	max int
}

// New returns a bar for an operation of initially unknown size. Call AddMax
// as work is discovered and Add as it completes.
func New(description string, quiet bool) *Bar {
	if quiet || !term.IsTerminal(int(os.Stderr.Fd())) {
		return &Bar{}
	}
	return &Bar{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionShowCount(),
		),
	}
}

func (b *Bar) Add(n int) {
	if b == nil || b.bar == nil {
		return
	}
	_ = b.bar.Add(n)
}

// AddMax grows the total amount of expected work by n.
func (b *Bar) AddMax(n int) {
	if b == nil || b.bar == nil {
		return
	}
	b.max += n
	b.bar.ChangeMax(b.max)
}

func (b *Bar) Finish() {
	if b == nil || b.bar == nil {
		return
	}
	_ = b.bar.Finish()
}
