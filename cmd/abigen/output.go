package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexhholmes/abilayout/internal/driver"
	"github.com/alexhholmes/abilayout/internal/glue"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func statusStyle(status string) lipgloss.Style {
	if status == "valid" {
		return okStyle
	}
	return errorStyle
}

func printTypes(w io.Writer, views []driver.TypeView) {
	for _, v := range views {
		head := titleStyle.Render(v.CName)
		if v.Parent != "" {
			head += dimStyle.Render(" : " + v.Parent)
		}
		fmt.Fprintf(w, "%s %s", head, statusStyle(v.Status).Render(v.Status))
		if v.Status == "valid" {
			fmt.Fprintf(w, " size=%d align=%d", v.Size, v.Align)
		}
		fmt.Fprintln(w)
		if v.Error != "" {
			fmt.Fprintf(w, "  %s\n", errorStyle.Render(v.Error))
		}

		for _, f := range v.Fields {
			pos := fmt.Sprintf("%4d", f.Offset)
			if f.Bits > 0 {
				pos = fmt.Sprintf("%4d:%d", f.Offset, f.BitOffset)
			}
			line := fmt.Sprintf("  %-8s %-24s %-20s %4d  %s", pos, f.Path, typeStyle.Render(f.Type), f.Size, f.Class)
			if f.Bits > 0 {
				line += fmt.Sprintf(" bits=%d", f.Bits)
			}
			if f.Inherited {
				line = dimStyle.Render(line)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w)
	}
}

func printReport(w io.Writer, r *driver.Report) {
	fmt.Fprintf(w, "%s %d generated, %d skipped\n", titleStyle.Render("abigen"), r.Generated, r.Skipped)

	names := make([]string, 0, len(r.Strategies))
	for name := range r.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, r.Strategies[name]))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  fields: %s\n", strings.Join(parts, " "))
	}

	for _, d := range r.Diagnostics() {
		fmt.Fprintf(w, "  %s\n", errorStyle.Render(d))
	}
	if len(r.Mismatches) > 0 {
		printMismatches(w, r.Generated, r.Mismatches)
	}
}

func printMismatches(w io.Writer, checked int, mismatches []glue.Mismatch) {
	if len(mismatches) == 0 {
		fmt.Fprintf(w, "%s %d layouts match\n", okStyle.Render("ok"), checked)
		return
	}
	for _, m := range mismatches {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render("mismatch"), m)
	}
}
