package extract

import (
	"regexp"
	"strings"
)

// RepairStage names the cumulative set of repairs applied to a span.
type RepairStage string

const (
	StageNone       RepairStage = "none"
	StageBasic      RepairStage = "basic"
	StageAggressive RepairStage = "aggressive"
	StageLineLevel  RepairStage = "line-level"
)

// Rank orders stages by aggressiveness; unknown stages rank -1.
func (s RepairStage) Rank() int {
	switch s {
	case StageNone:
		return 0
	case StageBasic:
		return 1
	case StageAggressive:
		return 2
	case StageLineLevel:
		return 3
	default:
		return -1
	}
}

var (
	trailingSeparatorRe = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRe           = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	hostLiteralRe       = regexp.MustCompile(`(?i)\b(true|false|none|null)\b`)
)

// timestampedKeyRe matches keys like _type_3_questions_2024-05-01T10:00:00Z,
// quoted or not, up to the key separator.
var timestampedKeyRe = regexp.MustCompile(`"?_type_\d+_questions_[\d\-T:.Z]*[\dZ]"?(\s*:)`)

// BasicRepair removes comments, drops separators directly before a closing
// brace or bracket, and quotes bare identifier keys. String literals, single
// or double quoted, are left untouched. Timestamped question list keys are
// renamed to "questions".
func BasicRepair(text string) string {
	text = timestampedKeyRe.ReplaceAllString(text, `"questions"$1`)
	text = stripComments(text, false)
	return mapCode(text, fixSeparatorsAndKeys)
}

// AggressiveRepair extends BasicRepair: it also strips block comments,
// converts single-quoted strings to double-quoted ones, and rewrites
// True/False/None style literals. Separator and key fixes run again last,
// since the rewrites can expose new ones.
func AggressiveRepair(text string) string {
	text = stripComments(text, true)
	text = normalizeQuotes(text)
	text = mapCode(text, replaceHostLiterals)
	return mapCode(text, fixSeparatorsAndKeys)
}

// LineLevelRepair quotes the key of every line that has a colon and no
// double quote at all: `  name: value` becomes `  "name": value`. Leading
// whitespace and structural characters stay outside the quotes.
func LineLevelRepair(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(line, ":") || strings.Contains(line, `"`) {
			continue
		}
		colon := strings.Index(line, ":")
		key := line[:colon]
		lead := len(key) - len(strings.TrimLeft(key, " \t{}[],"))
		name := strings.TrimSpace(key[lead:])
		if name == "" {
			continue
		}
		lines[i] = key[:lead] + `"` + name + `":` + line[colon+1:]
	}
	return strings.Join(lines, "\n")
}

// replaceHostLiterals lowercases boolean and null literals and maps None to
// null. A word followed by a colon is a key and keeps its spelling.
func replaceHostLiterals(code string) string {
	matches := hostLiteralRe.FindAllStringIndex(code, -1)
	if len(matches) == 0 {
		return code
	}

	var b strings.Builder
	b.Grow(len(code))
	last := 0
	for _, m := range matches {
		rest := strings.TrimLeft(code[m[1]:], " \t\r\n")
		if strings.HasPrefix(rest, ":") {
			continue
		}
		b.WriteString(code[last:m[0]])
		lit := code[m[0]:m[1]]
		if strings.EqualFold(lit, "none") {
			b.WriteString("null")
		} else {
			b.WriteString(strings.ToLower(lit))
		}
		last = m[1]
	}
	b.WriteString(code[last:])
	return b.String()
}

func fixSeparatorsAndKeys(code string) string {
	code = trailingSeparatorRe.ReplaceAllString(code, "$1")
	return bareKeyRe.ReplaceAllString(code, `$1"$2"$3`)
}

// mapCode applies fn to every stretch of text outside string literals. An
// unterminated literal runs to the end of text.
func mapCode(text string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(text))

	start := 0
	for i := 0; i < len(text); {
		end, ok := literalEnd(text, i)
		if !ok {
			i++
			continue
		}
		b.WriteString(fn(text[start:i]))
		b.WriteString(text[i:end])
		i, start = end, end
	}
	b.WriteString(fn(text[start:]))
	return b.String()
}

// literalEnd reports whether a string literal opens at text[i] and returns
// the index just past it. A double quote always opens a literal; a single
// quote only where a token can start, so apostrophes in bare words do not.
func literalEnd(text string, i int) (int, bool) {
	switch text[i] {
	case '"':
		return quotedEnd(text, i), true
	case '\'':
		if opensToken(text, i) {
			return quotedEnd(text, i), true
		}
	}
	return 0, false
}

// opensToken reports whether text[i] follows the start of text, whitespace
// or one of {[,:.
func opensToken(text string, i int) bool {
	if i == 0 {
		return true
	}
	switch text[i-1] {
	case '{', '[', ',', ':', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// quotedEnd returns the index just past the literal that opens at
// text[open], closed by the same quote character.
func quotedEnd(text string, open int) int {
	q := text[open]
	for j := open + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(text)
}

// stripComments removes // line comments, and /* */ block comments when
// block is set, outside of string literals. Line breaks are kept.
func stripComments(text string, block bool) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		if end, ok := literalEnd(text, i); ok {
			b.WriteString(text[i:end])
			i = end
			continue
		}
		c := text[i]
		switch {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			nl := strings.IndexByte(text[i:], '\n')
			if nl < 0 {
				return b.String()
			}
			i += nl
		case block && c == '/' && i+1 < len(text) && text[i+1] == '*':
			closeIdx := strings.Index(text[i+2:], "*/")
			if closeIdx < 0 {
				return b.String()
			}
			i += 2 + closeIdx + 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// normalizeQuotes rewrites single-quoted strings as double-quoted JSON
// strings. Apostrophes inside double-quoted strings or bare words are not
// touched.
func normalizeQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch c {
		case '"':
			end := quotedEnd(text, i)
			b.WriteString(text[i:end])
			i = end
		case '\'':
			if !opensToken(text, i) {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteByte('"')
			i++
			for i < len(text) && text[i] != '\'' {
				switch {
				case text[i] == '\\' && i+1 < len(text):
					if text[i+1] == '\'' {
						b.WriteByte('\'')
					} else {
						b.WriteString(text[i : i+2])
					}
					i += 2
				case text[i] == '"':
					b.WriteString(`\"`)
					i++
				default:
					b.WriteByte(text[i])
					i++
				}
			}
			b.WriteByte('"')
			if i < len(text) {
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
