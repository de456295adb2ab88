package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

const indentUnit = "    "

type App struct {
	Name        string
	Usage       string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error

	Stdout io.Writer
	Stderr io.Writer
	// Width overrides the detected terminal width when non-zero.
	Width int
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Run parses arguments and hands the positional ones to Action. A parse
// error prints the short usage page to Stderr and is returned.
func (a *App) Run(arguments []string) error {
	var help bool
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(a.Stderr, "%s: %v\n", a.Name, err)
		a.WriteUsage(a.Stderr)
		return err
	}
	if help {
		a.WriteHelp(a.Stdout)
		return nil
	}
	if a.Action == nil {
		return nil
	}
	return a.Action(a.FlagSet.Args())
}

func (a *App) usageLine() string {
	if a.Usage != "" {
		return a.Usage
	}
	return "[options] <file> ..."
}

// WriteUsage prints the one-screen summary: the usage line and plain options.
func (a *App) WriteUsage(w io.Writer) {
	t := a.newTable()
	for _, fl := range a.FlagSet.options() {
		t.add(flagSpelling(fl), fl.Usage, defaultNote(fl))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.usageLine())
	if len(t.rows) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indentUnit)
		t.render(&sb)
	}
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	io.WriteString(w, sb.String())
}

// WriteHelp prints the full page including every flag group and the state
// of each of its members.
func (a *App) WriteHelp(w io.Writer) {
	var sb strings.Builder
	if len(a.Authors) > 0 {
		fmt.Fprintf(&sb, "\n%sCopyright (c) %d: %s and contributors\n", indentUnit, time.Now().Year(), strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indentUnit, a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indentUnit, indentUnit+indentUnit, a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indentUnit)
		for _, line := range wrapText(a.Description, a.width()-2*len(indentUnit)) {
			fmt.Fprintf(&sb, "%s%s\n", indentUnit+indentUnit, line)
		}
	}

	// One table keeps every column aligned across sections.
	t := a.newTable()
	options := a.FlagSet.options()
	for _, fl := range options {
		t.add(flagSpelling(fl), fl.Usage, defaultNote(fl))
	}
	if len(options) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indentUnit)
		t.render(&sb)
	}

	groups := append([]FlagGroup(nil), a.FlagSet.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, g := range groups {
		if len(g.Entries) == 0 {
			continue
		}
		kind := g.Kind
		if kind == "" {
			kind = "flag"
		}
		prefix := g.Entries[0].Prefix
		gt := a.newTable()
		gt.add(fmt.Sprintf("-%s<%s>", prefix, kind), "Enable a specific "+kind, "")
		gt.add(fmt.Sprintf("-%sno-<%s>", prefix, kind), "Disable a specific "+kind, "")

		entries := append([]FlagGroupEntry(nil), g.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		mt := a.newTable()
		for _, e := range entries {
			state := "|-|"
			if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
				state = "|x|"
			}
			mt.add(e.Name, e.Usage, state)
		}
		gt.alignWith(t)
		mt.alignWith(gt)

		fmt.Fprintf(&sb, "\n%s%s\n", indentUnit, g.Name)
		gt.render(&sb)
		if g.Header != "" {
			fmt.Fprintf(&sb, "%s%s\n", indentUnit, g.Header)
		}
		mt.render(&sb)
	}
	io.WriteString(w, sb.String())
}

func (a *App) width() int {
	if a.Width > 0 {
		return a.Width
	}
	return terminalWidth()
}

func (a *App) newTable() *table { return &table{width: a.width()} }

// flagSpelling renders a flag as it is typed: "-o, --output <file>".
func flagSpelling(fl *Flag) string {
	arg := ""
	if !fl.isBool() && fl.Placeholder != "" {
		arg = " <" + fl.Placeholder + ">"
	}
	if fl.Shorthand == "" {
		return "--" + fl.Name + arg
	}
	return "-" + fl.Shorthand + ", --" + fl.Name + arg
}

func defaultNote(fl *Flag) string {
	if fl.isBool() || fl.Default == "" {
		return ""
	}
	return "|" + fl.Default + "|"
}

// table lays out rows of "left usage note" with usage wrapped to the
// terminal.
type table struct {
	width       int
	left, usage int
	rows        [][3]string
}

func (t *table) add(left, usage, note string) {
	t.rows = append(t.rows, [3]string{left, usage, note})
	if len(left) > t.left {
		t.left = len(left)
	}
	if len(usage) > t.usage {
		t.usage = len(usage)
	}
}

// alignWith widens both tables to the larger column widths.
func (t *table) alignWith(o *table) {
	t.left = max(t.left, o.left)
	t.usage = max(t.usage, o.usage)
	o.left, o.usage = t.left, t.usage
}

func (t *table) render(sb *strings.Builder) {
	pad := len(indentUnit) * 2
	for _, r := range t.rows {
		avail := max(t.width-pad-t.left-1-len(r[2])-2, 10)
		lines := wrapText(r[1], avail)
		if len(lines) == 0 {
			lines = []string{""}
		}
		col := min(t.usage, avail)
		if r[2] != "" {
			fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indentUnit+indentUnit, t.left, r[0], col, lines[0], r[2])
		} else {
			fmt.Fprintf(sb, "%s%-*s %s\n", indentUnit+indentUnit, t.left, r[0], lines[0])
		}
		for _, l := range lines[1:] {
			fmt.Fprintf(sb, "%s%s%s\n", indentUnit+indentUnit, strings.Repeat(" ", t.left+1), l)
		}
	}
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return max(w, 20)
}

// wrapText breaks text into lines of at most width columns at spaces. A
// single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		if len(words) == 0 {
			return nil
		}
		return []string{text}
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}
