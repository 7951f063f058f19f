package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Sketchy banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"      _        _       _           ", "#38bdf8"},
		{"  ___| | _____| |_ ___| |__  _   _ ", "#22d3ee"},
		{" / __| |/ / _ \\ __/ __| '_ \\| | | |", "#2dd4bf"},
		{" \\__ \\   <  __/ || (__| | | | |_| |", "#34d399"},
		{" |___/_|\\_\\___|\\__\\___|_| |_|\\__, |", "#4ade80"},
		{"                             |___/ ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
