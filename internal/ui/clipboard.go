package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
)

// Clipboard writes text to the user's clipboard.
type Clipboard func(text string) error

// copyTools lists clipboard writers per OS, first installed one wins.
var copyTools = map[string][][]string{
	"darwin":  {{"pbcopy"}},
	"windows": {{"clip"}},
	"linux":   {{"wl-copy"}, {"xclip", "-selection", "clipboard"}, {"xsel", "--clipboard", "--input"}},
}

// SystemClipboard copies through an installed clipboard tool and otherwise
// writes an OSC 52 sequence to out, which most terminals honour over ssh.
func SystemClipboard(out io.Writer) Clipboard {
	return func(text string) error {
		if argv := findTool(runtime.GOOS); argv != nil {
			cmd := exec.Command(argv[0], argv[1:]...)
			cmd.Stdin = strings.NewReader(text)
			if err := cmd.Run(); err == nil {
				return nil
			}
		}
		return writeOSC52(out, text)
	}
}

func findTool(goos string) []string {
	tools, ok := copyTools[goos]
	if !ok {
		tools = copyTools["linux"]
	}
	for _, argv := range tools {
		if _, err := exec.LookPath(argv[0]); err == nil {
			return argv
		}
	}
	return nil
}

func writeOSC52(out io.Writer, text string) error {
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if os.Getenv("STY") != "" {
		seq = seq.Screen()
	}
	if _, err := seq.WriteTo(out); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// OpenBrowser opens url with the OS handler and does not wait for it.
func OpenBrowser(url string) error {
	name, args := "xdg-open", []string{url}
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	}
	return exec.Command(name, args...).Start()
}
