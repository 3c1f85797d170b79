package usecases

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageChars is the per-message limit used when splitting replies.
	MaxMessageChars = 4000
	// MaxDocumentChars bounds the document text sent to the remote backend.
	MaxDocumentChars = 8000
)

// ChunkText splits s into pieces of at most limit runes. A piece ends at the
// last newline in its window when that newline falls in the second half of
// the window; otherwise it is cut at the limit, moved back so that no tag or
// entity is split. A b, i or code element that spans a cut is closed at the
// end of the piece and reopened at the start of the next one, so each piece
// is well-formed on its own and may exceed limit by those closing tags.
func ChunkText(s string, limit int) []string {
	if s == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var out []string
	for s != "" {
		if utf8.RuneCountInString(s) <= limit {
			out = append(out, s)
			break
		}
		window := s[:runeOffset(s, limit)]
		cut := len(window)
		if i := strings.LastIndex(window, "\n"); i >= 0 && utf8.RuneCountInString(window[:i])+1 > limit/2 {
			cut = i + 1
		} else if c := safeCut(window); utf8.RuneCountInString(window[:c]) > limit/2 {
			cut = c
		}

		piece, rest := s[:cut], s[cut:]
		if open := openTags(piece); len(open) > 0 {
			for i := len(open) - 1; i >= 0; i-- {
				piece += "</" + open[i] + ">"
			}
			var reopen strings.Builder
			for _, name := range open {
				reopen.WriteString("<" + name + ">")
			}
			rest = reopen.String() + rest
		}
		out = append(out, piece)
		s = rest
	}
	return out
}

func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// safeCut moves the end of w back before an unterminated tag or entity.
func safeCut(w string) int {
	cut := len(w)
	if i := strings.LastIndexByte(w, '<'); i >= 0 && !strings.Contains(w[i:], ">") {
		cut = i
	}
	if i := strings.LastIndexByte(w[:cut], '&'); i >= 0 && cut-i <= maxEntityLen && !strings.Contains(w[i:cut], ";") {
		cut = i
	}
	return cut
}

const maxEntityLen = 8

// openTags lists the elements left open at the end of s, outermost first.
func openTags(s string) []string {
	var stack []string
	for _, m := range ownTagRe.FindAllString(s, -1) {
		if strings.HasPrefix(m, "</") {
			name := m[2 : len(m)-1]
			if n := len(stack); n > 0 && stack[n-1] == name {
				stack = stack[:n-1]
			}
			continue
		}
		stack = append(stack, m[1:len(m)-1])
	}
	return stack
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
