package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the relay banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"            _             ", "#818cf8"},
		{"  _ __ ___ | | __ _ _   _ ", "#a78bfa"},
		{" | '__/ _ \\| |/ _` | | | |", "#c084fc"},
		{" | | |  __/| | (_| | |_| |", "#e879f9"},
		{" |_|  \\___||_|\\__,_|\\__, |", "#f472b6"},
		{"                    |___/ ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
