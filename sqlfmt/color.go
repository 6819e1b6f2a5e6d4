// Package sqlfmt renders SQL statements and result rows for console logs.
//
// Output uses fixed ANSI escape codes: keywords blue, bound values green,
// errors red, table borders yellow, empty results cyan.
package sqlfmt

// ANSI color codes.
const (
	Reset  = "\u001B[0m"
	Blue   = "\u001B[34m"
	Green  = "\u001B[32m"
	Red    = "\u001B[31m"
	Yellow = "\u001B[33m"
	Cyan   = "\u001B[36m"
)

// Colorize wraps s in color and a trailing reset.
func Colorize(color, s string) string {
	return color + s + Reset
}

// ErrorPrefix returns the red prefix used for failed statements.
func ErrorPrefix(msg string) string {
	return Colorize(Red, msg)
}
