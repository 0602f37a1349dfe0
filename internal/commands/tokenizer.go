package commands

import "strings"

// Tokenize splits raw invocation text into tokens.
//
// Single or double quotes group text; a quote only closes on the character
// that opened it. Inside quotes a backslash makes the next character
// literal. Spaces outside quotes separate tokens and empty tokens are
// dropped. An unterminated quote runs to the end of the input.
func Tokenize(input string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		escaped bool
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, ch := range input {
		switch {
		case escaped:
			current.WriteRune(ch)
			escaped = false
		case quote != 0 && ch == '\\':
			escaped = true
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote == 0 && ch == ' ':
			flush()
		default:
			current.WriteRune(ch)
		}
	}
	flush()

	return tokens
}
