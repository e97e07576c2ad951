// Package output provides formatted terminal output for the propdesk CLI.
// Status lines go to stderr so that stdout stays pipeable.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/propdesk/propdesk/internal/constants"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)

	// Stdout is the output writer for normal output (can be overridden for testing).
	Stdout io.Writer = os.Stdout
	// Stderr is the output writer for status output (can be overridden for testing).
	Stderr io.Writer = os.Stderr
	// Stdin is where prompts read from (can be overridden for testing).
	Stdin io.Reader = os.Stdin

	noColor = func() bool {
		disable := os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout)
		if disable {
			color.NoColor = true
		}
		return disable
	}()
	ansiRegexp = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	stdinOnce   sync.Once
	stdinReader *bufio.Reader
)

// visibleWidth returns the number of visible characters, ignoring ANSI escape codes
func visibleWidth(s string) int {
	return utf8.RuneCountInString(ansiRegexp.ReplaceAllString(s, ""))
}

// Successf prints a success message with a checkmark (to stderr)
// Example: ✓ Signed in as property.manager@example.com
func Successf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, green.Sprint("✓")+" "+format+"\n", a...)
}

// Infof prints an informational message with an arrow (to stderr)
// Example: → Connecting to wss://app.propdesk.io/socket.io
func Infof(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, cyan.Sprint("→")+" "+format+"\n", a...)
}

// Warningf prints a warning message with a warning symbol (to stderr)
// Example: ⚠ Real-time notifications unavailable, polling every 30s
func Warningf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, yellow.Sprint("⚠")+" "+format+"\n", a...)
}

// Errorf prints an error message with an X symbol (to stderr)
func Errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(Stderr, red.Sprint("✗")+" "+format+"\n", a...)
}

// Header prints a section header with a separator line (to stderr)
func Header(text string) {
	_, _ = fmt.Fprintln(Stderr)
	_, _ = fmt.Fprintln(Stderr, bold.Sprint(text))
	_, _ = fmt.Fprintln(Stderr, gray.Sprint(strings.Repeat("━", constants.HeaderSeparatorLength)))
}

// KeyValue prints an indented key-value pair
// Example:   Tenant: tnt-1
func KeyValue(key, value string) {
	_, _ = fmt.Fprintf(Stdout, "  %s: %s\n", gray.Sprint(key), value)
}

// Blank prints a blank line
func Blank() {
	_, _ = fmt.Fprintln(Stdout)
}

// Println prints a plain line without any formatting
func Println(a ...any) {
	_, _ = fmt.Fprintln(Stdout, a...)
}

// Bold returns text in bold
func Bold(text string) string {
	return bold.Sprint(text)
}

// Cyan returns text in cyan
func Cyan(text string) string {
	return cyan.Sprint(text)
}

// Gray returns text in gray
func Gray(text string) string {
	return gray.Sprint(text)
}

// Table prints a simple table with headers. Cells may contain color codes.
// Example:
// ID      Title                  Received
// ──      ─────                  ────────
// ntf-1   Gas safety check due   2m ago
func Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleWidth(cell))
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(string) string) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			b.WriteString(style(cell))
			b.WriteString(strings.Repeat(" ", max(widths[i]-visibleWidth(cell), 0)))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}

	writeRow(headers, Bold)
	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("─", widths[i])
	}
	writeRow(separators, Gray)
	for _, row := range rows {
		writeRow(row, func(s string) string { return s })
	}

	_, _ = io.WriteString(Stdout, b.String())
}

// Prompt prompts the user for a line of input
func Prompt(prompt string) string {
	_, _ = fmt.Fprintf(Stderr, "%s: ", cyan.Sprint("?")+" "+prompt)
	return readLine()
}

// PromptSecret prompts for sensitive input without echoing it when stdin is a terminal.
func PromptSecret(prompt string) string {
	_, _ = fmt.Fprintf(Stderr, "%s: ", cyan.Sprint("?")+" "+prompt)

	if f, ok := Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(Stderr)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(secret))
	}
	return readLine()
}

func readLine() string {
	stdinOnce.Do(func() { stdinReader = bufio.NewReader(Stdin) })
	line, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(line)
}

// ResetInput drops buffered prompt input so a replaced Stdin is read from scratch.
func ResetInput() {
	stdinOnce = sync.Once{}
	stdinReader = nil
}

// StateBadge renders a notification channel state as a colored badge
func StateBadge(state string) string {
	switch strings.ToLower(state) {
	case "connected":
		return green.Sprint("● " + state)
	case "connecting":
		return yellow.Sprint("● " + state)
	case "disconnected":
		return red.Sprint("● " + state)
	default:
		return gray.Sprint("● " + state)
	}
}

// ReadMarker renders the read flag of a notification
func ReadMarker(read bool) string {
	if read {
		return gray.Sprint("read")
	}
	return bold.Sprint(cyan.Sprint("unread"))
}

// Truncate shortens s to at most n visible runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// Duration formats a duration in a human-readable way
func Duration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%constants.SecondsPerMinute)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%constants.MinutesPerHour)
	}
}

// Ago formats t relative to now, e.g. "just now", "5m ago", "3d ago".
// A zero time renders as "-".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < constants.HoursPerDay*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours())/constants.HoursPerDay)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
