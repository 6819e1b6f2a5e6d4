package sqlfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// indent follows every comma and opening parenthesis.
const indent = "\n    "

// keywords are broken onto their own line. INSERT INTO is matched separately.
var keywords = map[string]struct{}{
	"SET":    {},
	"WHERE":  {},
	"VALUES": {},
	"UPDATE": {},
	"SELECT": {},
	"FROM":   {},
	"DELETE": {},
}

// Query is a statement rendered for logging.
type Query struct {
	Text string

	// Placeholders counts ? markers plus the highest $n index.
	Placeholders int
	// Values is the number of bound values supplied.
	Values int
	// Substituted counts placeholder occurrences replaced by a value.
	Substituted int
}

// Mismatch reports whether the statement and its bindings disagree on arity.
func (q Query) Mismatch() bool {
	return q.Placeholders != q.Values
}

// FormatQuery substitutes bound values into placeholders, breaks the
// statement on keywords, commas and parentheses, and colors keywords and
// values.
//
// ? placeholders consume values left to right; $n placeholders take the
// n-th value. Placeholders without a value are left as written and extra
// values are ignored. Quoted literals and identifiers are copied verbatim.
func FormatQuery(query string, values []any) Query {
	q := Query{Values: len(values)}

	var b strings.Builder
	b.Grow(len(query) + len(query)/2)

	next, maxIndex := 0, 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(query, i)
			b.WriteString(query[i:end])
			i = end

		case c == '?':
			q.Placeholders++
			if next < len(values) {
				b.WriteString(formatBound(values[next]))
				next++
				q.Substituted++
			} else {
				b.WriteByte('?')
			}
			i++

		case c == '$' && i+1 < len(query) && isDigit(query[i+1]):
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			if n > maxIndex {
				maxIndex = n
			}
			if n >= 1 && n <= len(values) {
				b.WriteString(formatBound(values[n-1]))
				q.Substituted++
			} else {
				b.WriteString(query[i:j])
			}
			i = j

		case c == ',':
			b.WriteString("," + indent)
			i++

		case c == '(':
			b.WriteString("(" + indent)
			i++

		case c == ')':
			b.WriteString("\n)")
			i++

		case isDigit(c):
			j := i
			for j < len(query) && isWordChar(query[j]) {
				j++
			}
			b.WriteString(query[i:j])
			i = j

		case isWordStart(c):
			j := i
			for j < len(query) && isWordChar(query[j]) {
				j++
			}
			word := query[i:j]
			upper := strings.ToUpper(word)

			if upper == "INSERT" {
				if end, ok := followedByInto(query, j); ok {
					b.WriteString("\n" + Colorize(Blue, query[i:end]))
					i = end
					continue
				}
			}

			if _, ok := keywords[upper]; ok {
				b.WriteString("\n" + Colorize(Blue, word))
			} else {
				b.WriteString(word)
			}
			i = j

		default:
			b.WriteByte(c)
			i++
		}
	}

	q.Placeholders += maxIndex
	q.Text = b.String()
	return q
}

// FormatValue renders a bound or result value as plain text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000000")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func formatBound(v any) string {
	if v == nil {
		return Colorize(Green, "NULL")
	}
	return Colorize(Green, "'"+FormatValue(v)+"'")
}

// skipQuoted returns the index just past the literal opened at query[start].
// Doubled quotes and backslash escapes inside single quotes are honoured.
func skipQuoted(query string, start int) int {
	quote := query[start]
	for j := start + 1; j < len(query); j++ {
		switch query[j] {
		case '\\':
			if quote == '\'' {
				j++
			}
		case quote:
			if j+1 < len(query) && query[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(query)
}

// followedByInto reports whether query[from:] is whitespace then the word INTO,
// returning the index after INTO.
func followedByInto(query string, from int) (int, bool) {
	k := from
	for k < len(query) && isSpace(query[k]) {
		k++
	}
	if k == from || k+4 > len(query) || !strings.EqualFold(query[k:k+4], "INTO") {
		return 0, false
	}
	if k+4 < len(query) && isWordChar(query[k+4]) {
		return 0, false
	}
	return k + 4, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || isDigit(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
