// Package cli holds the terminal formatting shared by the sotboard commands.
package cli

import (
	"os"
	"regexp"
	"strings"
)

// colorEnabled is false when NO_COLOR is set (see no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green, Yellow, Red, Bold and Dim wrap s in ANSI codes unless NO_COLOR is set.
func Green(s string) string  { return paint("32", s) }
func Yellow(s string) string { return paint("33", s) }
func Red(s string) string    { return paint("31", s) }
func Bold(s string) string   { return paint("1", s) }
func Dim(s string) string    { return paint("2", s) }

// Status renders a step outcome.
func Status(ok bool) string {
	if ok {
		return Green("ok")
	}
	return Red("FAILED")
}

// DotPad pads name with dots to width: DotPad("interfaces", 16) is
// "interfaces .....".
func DotPad(name string, width int) string {
	n := visualLen(name)
	if width <= 0 || n >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-n-1)
}

// visualLen is the printed width of s, ignoring ANSI codes.
func visualLen(s string) int {
	return len([]rune(ansiRE.ReplaceAllString(s, "")))
}
