package directive

import (
	"strings"
	"unicode"
)

const fence = "```"

// firstStructuredBlock walks the fenced blocks of text in order and returns the
// body of the first structured one: a block tagged "json", or an untagged block
// whose body starts with '{'. Every other block (sql, python, untagged query
// text or tool output) is skipped whole.
// A structured block that is opened but never closed is an error.
func firstStructuredBlock(text string) (body string, found bool, err error) {
	pos := 0
	for {
		open := strings.Index(text[pos:], fence)
		if open < 0 {
			return "", false, nil
		}
		open += pos

		info, contentStart := infoString(text, open+len(fence))

		closeRel := strings.Index(text[contentStart:], fence)
		bodyEnd := len(text)
		if closeRel >= 0 {
			bodyEnd = contentStart + closeRel
		}
		structured := strings.EqualFold(info, "json") ||
			(info == "" && strings.HasPrefix(strings.TrimSpace(text[contentStart:bodyEnd]), "{"))

		if closeRel < 0 {
			if structured {
				return "", false, ErrUnterminatedBlock
			}
			return "", false, nil
		}
		closeAt := contentStart + closeRel

		if structured {
			return strings.TrimSpace(text[contentStart:closeAt]), true, nil
		}

		pos = closeAt + len(fence)
	}
}

// infoString reads the language tag that directly follows an opening fence.
// It returns the tag and the offset where the block content starts: after the
// rest of the fence line when the tag is followed by a newline, or right after
// the tag for single-line blocks such as ```json {"a":1}```.
func infoString(text string, at int) (string, int) {
	end := at
	for end < len(text) {
		r := rune(text[end])
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+') {
			break
		}
		end++
	}
	info := text[at:end]

	// Skip trailing spaces on the fence line and the newline itself
	next := end
	for next < len(text) && (text[next] == ' ' || text[next] == '\t' || text[next] == '\r') {
		next++
	}
	if next < len(text) && text[next] == '\n' {
		next++
	}

	return info, next
}
