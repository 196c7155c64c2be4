package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Confirm asks a yes/no question on the terminal. Anything but y/yes is no.
func Confirm(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, StyleWarning.Render(prompt))
}

// ConfirmDanger is Confirm for destructive actions.
func ConfirmDanger(prompt string) bool {
	return ConfirmFrom(os.Stdin, os.Stdout, StyleError.Render("⚠ "+prompt))
}

// ConfirmFrom writes prompt to w and reads the answer line from r.
func ConfirmFrom(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt+" [y/N]: ")
	answer, _ := bufio.NewReader(r).ReadString('\n')
	return slices.Contains([]string{"y", "yes"}, strings.ToLower(strings.TrimSpace(answer)))
}
