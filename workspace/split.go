package workspace

import "strings"

// SplitStatements splits text on semicolons into trimmed, non-empty
// statements. Semicolons inside quoted strings and identifiers ('...',
// "...", `...`, [...]), inside comments and inside the BEGIN ... END body of
// CREATE TRIGGER do not split. Comments are removed.
func SplitStatements(text string) []string {
	var (
		statements []string
		current    strings.Builder
		word       strings.Builder
		first      string
		trigger    bool
		depth      int
	)

	endWord := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.ToUpper(word.String())
		word.Reset()
		if first == "" {
			first = w
		}
		switch w {
		case "TRIGGER":
			if first == "CREATE" {
				trigger = true
			}
		case "BEGIN":
			if trigger {
				depth++
			}
		case "CASE":
			if depth > 0 {
				depth++
			}
		case "END":
			if depth > 0 {
				depth--
			}
		}
	}
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
		first, trigger, depth = "", false, 0
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			endWord()
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			for j < len(text) && text[j] != closer {
				j++
			}
			if j < len(text) {
				j++
			}
			current.WriteString(text[i:j])
			i = j - 1
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			endWord()
			for i < len(text) && text[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			endWord()
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += 2 + end + 1
			}
			current.WriteByte(' ')
		case c == ';':
			endWord()
			if depth > 0 {
				current.WriteByte(c)
				continue
			}
			flush()
		case isWordByte(c):
			word.WriteByte(c)
			current.WriteByte(c)
		default:
			endWord()
			current.WriteByte(c)
		}
	}
	endWord()
	flush()
	return statements
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}
