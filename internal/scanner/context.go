package scanner

import "strings"

// callContext captures the full text of a call expression starting at
// the given offset of the call's opening identifier. It walks forward
// from the first '(' tracking parenthesis and brace depth plus
// string-literal state, so parens inside string literals and template
// strings never confuse the boundary. This is the one extraction where
// regex is genuinely unreliable: nested delimiters and string-escaped
// quotes need real lexical scanning.
func callContext(src string, start int) string {
	open := strings.IndexByte(src[start:], '(')
	if open < 0 {
		return ""
	}
	open += start

	depth := 0
	inString := false
	var delim byte

	for i := open; i < len(src); i++ {
		ch := src[i]

		if inString {
			switch {
			case ch == '\\':
				i++ // skip the escaped character
			case ch == delim:
				inString = false
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			inString = true
			delim = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[start : i+1]
			}
		}
	}

	// Unbalanced call (truncated file); return what we have.
	return src[start:]
}

// balancedBraces returns the text of a {...} block starting at or after
// offset, using the same string-aware scan. Returns "" if no block
// opens before anything else meaningful.
func balancedBraces(src string, offset int) string {
	open := strings.IndexByte(src[offset:], '{')
	if open < 0 {
		return ""
	}
	open += offset

	depth := 0
	inString := false
	var delim byte

	for i := open; i < len(src); i++ {
		ch := src[i]

		if inString {
			switch {
			case ch == '\\':
				i++
			case ch == delim:
				inString = false
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			inString = true
			delim = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open : i+1]
			}
		}
	}

	return ""
}

// topLevelKeys extracts the top-level property names of a JS object
// literal, including shorthand properties. Nested objects and arrays
// are skipped wholesale.
func topLevelKeys(objText string) []string {
	if len(objText) < 2 || objText[0] != '{' {
		return nil
	}
	body := objText[1 : len(objText)-1]

	var keys []string
	depth := 0
	inString := false
	var delim byte
	expectKey := true
	var token strings.Builder

	flush := func() {
		name := strings.TrimSpace(token.String())
		name = strings.Trim(name, `'"`)
		token.Reset()
		if name != "" && expectKey && isIdentifier(name) {
			keys = append(keys, name)
		}
	}

	for i := 0; i < len(body); i++ {
		ch := body[i]

		if inString {
			switch {
			case ch == '\\':
				i++
			case ch == delim:
				inString = false
			}
			if depth == 0 && expectKey {
				token.WriteByte(ch)
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			inString = true
			delim = ch
			if depth == 0 && expectKey {
				token.WriteByte(ch)
			}
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case ':':
			if depth == 0 {
				flush()
				expectKey = false
			}
		case ',':
			if depth == 0 {
				// A comma while still expecting a key means the previous
				// property was shorthand: { name, qty }.
				flush()
				expectKey = true
			}
		default:
			if depth == 0 && expectKey {
				token.WriteByte(ch)
			}
		}
	}
	flush()

	return keys
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		case r == '.':
			// Spread or computed access is not a plain key.
			return false
		default:
			return false
		}
	}
	return true
}
