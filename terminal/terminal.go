// Package terminal implements the interactive prompt primitives used by the
// setup wizard: wrapped text output, colored headers and status markers, and
// input loops that keep re-prompting until the operator supplies a valid
// answer.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"
)

const wrapWidth = 80

// Option is one selectable entry in a numbered menu. Value is handed back
// verbatim when the entry is chosen.
type Option struct {
	Selector int
	Prompt   string
	Value    interface{}
}

// UI reads operator input from a single reader and writes prompts and
// status output to a single writer. It is safe to drive from scripted
// buffers in tests.
type UI struct {
	scanner *bufio.Scanner
	out     io.Writer
	eof     bool

	header   *color.Color
	question *color.Color
	warning  *color.Color
	success  *color.Color
	failure  *color.Color
}

func New(
	in io.Reader,
	out io.Writer,
) *UI {
	return &UI{
		scanner:  bufio.NewScanner(in),
		out:      out,
		header:   color.New(color.FgGreen),
		question: color.New(color.FgCyan),
		warning:  color.New(color.FgYellow),
		success:  color.New(color.FgGreen),
		failure:  color.New(color.FgRed),
	}
}

// PrintHeader prints a green section header preceded by a blank line.
func (ui *UI) PrintHeader(
	s string,
) {
	fmt.Fprintln(ui.out)
	ui.header.Fprintln(ui.out, wordwrap.WrapString(s, wrapWidth))
}

// WriteString prints a paragraph wrapped to the terminal width.
func (ui *UI) WriteString(
	s string,
) {
	fmt.Fprintln(ui.out, wordwrap.WrapString(s, wrapWidth))
}

// Printf prints unwrapped formatted text.
func (ui *UI) Printf(
	format string,
	args ...interface{},
) {
	fmt.Fprintf(ui.out, format, args...)
}

// Println prints an unwrapped line.
func (ui *UI) Println(
	args ...interface{},
) {
	fmt.Fprintln(ui.out, args...)
}

// Warn prints a yellow warning line.
func (ui *UI) Warn(
	s string,
) {
	ui.warning.Fprintln(ui.out, wordwrap.WrapString(s, wrapWidth))
}

// Good prints a green confirmation line.
func (ui *UI) Good(
	s string,
) {
	ui.success.Fprintln(ui.out, s)
}

// OK prints the green success marker, terminating a progress line.
func (ui *UI) OK() {
	ui.success.Fprintln(ui.out, "✓")
}

// Fail prints the red failure marker, terminating a progress line.
func (ui *UI) Fail() {
	ui.failure.Fprintln(ui.out, "✗")
}

// Failln prints a red failure line.
func (ui *UI) Failln(
	s string,
) {
	ui.failure.Fprintln(ui.out, s)
}

// readLine returns the next input line. When input is exhausted it returns
// the empty string so callers never block forever on a closed stream.
func (ui *UI) readLine() string {
	if !ui.scanner.Scan() {
		ui.eof = true
		return ""
	}
	return strings.TrimSpace(ui.scanner.Text())
}

// GetInput prompts until a response is supplied. With allowEmpty set, a
// blank response is returned as-is.
func (ui *UI) GetInput(
	prompt string,
	allowEmpty bool,
) string {
	for {
		ui.question.Fprintf(ui.out, "> %s", prompt)
		response := ui.readLine()
		if response != "" || allowEmpty || ui.eof {
			return response
		}
	}
}

// GetYN prompts for a yes/no answer. A blank response selects the default.
func (ui *UI) GetYN(
	prompt string,
	def bool,
) bool {
	if def {
		prompt += " [Y/n]? "
	} else {
		prompt += " [y/N]? "
	}
	response := strings.ToLower(ui.GetInput(prompt, true))
	if response == "" {
		return def
	}
	return response == "y" || response == "yes"
}

// GetInt prompts for an integer, falling back to def on a blank response
// and re-prompting on anything unparsable.
func (ui *UI) GetInt(
	prompt string,
	def int64,
) int64 {
	for {
		response := ui.GetInput(prompt, true)
		if response == "" {
			return def
		}
		n, err := strconv.ParseInt(response, 10, 64)
		if err != nil {
			ui.Warn("Please enter a number!")
			continue
		}
		return n
	}
}

// GetSelection displays a numbered menu and prompts until a listed selector
// is entered. With allowEmpty set, a blank response returns ok=false.
// Invalid choices are reported and re-prompted, never surfaced to the
// caller.
func (ui *UI) GetSelection(
	prompt string,
	options []Option,
	promptAfter string,
	allowEmpty bool,
) (
	interface{},
	bool,
) {
	if allowEmpty {
		promptAfter += " (Empty for none)"
	}
	promptAfter += ": "

	for {
		fmt.Fprintln(ui.out, prompt)
		for _, opt := range options {
			fmt.Fprintf(ui.out, "[%d] %s\n", opt.Selector, opt.Prompt)
		}
		fmt.Fprintln(ui.out)

		choice := ui.GetInput(promptAfter, true)
		if choice == "" && (allowEmpty || ui.eof) {
			return nil, false
		}

		for _, opt := range options {
			if choice == strconv.Itoa(opt.Selector) {
				return opt.Value, true
			}
		}

		ui.Warn("Please enter a valid choice!")
	}
}
