package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the botlink banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, colour string
	}{
		{"  _           _   _ _       _    ", "#34d399"},
		{" | |__   ___ | |_| (_)_ __ | | __", "#2dd4bf"},
		{" | '_ \\ / _ \\| __| | | '_ \\| |/ /", "#22d3ee"},
		{" | |_) | (_) | |_| | | | | |   < ", "#38bdf8"},
		{" |_.__/ \\___/ \\__|_|_|_| |_|_|\\_\\", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.colour)))
	}
	fmt.Fprintln(w)
}
