package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spin draws a spinner on stderr while fn runs and returns fn's error.
func Spin(msg string, fn func() error) error {
	return SpinTo(os.Stderr, msg, fn)
}

// SpinTo is Spin drawing on w. The line is wiped before it returns so the
// caller's next output starts clean.
func SpinTo(w io.Writer, msg string, fn func() error) error {
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(spinnerInterval)
		defer tick.Stop()
		frame := 0
		for {
			fmt.Fprintf(w, "\r%s  %s", StyleBrand.Render(spinnerFrames[frame]), msg)
			frame = (frame + 1) % len(spinnerFrames)
			select {
			case <-quit:
				fmt.Fprintf(w, "\r\033[K")
				return
			case <-tick.C:
			}
		}
	}()

	err := fn()
	close(quit)
	wg.Wait()
	return err
}
