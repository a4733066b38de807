package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// printDiff writes a unified diff, coloring added and removed lines.
func printDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, color.New(color.Bold).Sprint(line))
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(w, color.CyanString("%s", line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, color.GreenString("%s", line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, color.RedString("%s", line))
		default:
			fmt.Fprint(w, line)
		}
	}
}
