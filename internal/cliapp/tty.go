package cliapp

import (
	"io"
	"os"

	"golang.org/x/term"
)

// isOutputTerminal reports whether w is a terminal rather than a pipe
// or redirected file, so table rendering can decide whether to emit
// ANSI color for spam/high-score rows.
func isOutputTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
