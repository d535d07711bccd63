// Package emotion extracts bracketed emotion markers from agent output.
//
// The agent is prompted to annotate speech with tags like "[joy]" or
// "[anger]". Extract resolves those tags to renderer expression IDs through
// the active model's emotion map, and Strip removes them from the text shown
// to viewers.
package emotion

import "strings"

// Extract scans text left to right and returns the expression IDs of all
// recognised emotion tags, in order of appearance. A tag is recognised when
// the content between "[" and the next "]" matches an emotion map key,
// compared case-insensitively. Unterminated or unknown brackets are treated
// as literal text. Duplicate tags yield duplicate IDs.
func Extract(text string, emotionMap map[string]int) []int {
	if len(emotionMap) == 0 {
		return nil
	}

	var ids []int
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		end := strings.IndexByte(text[i+1:], ']')
		if end < 0 {
			break
		}
		token := strings.ToLower(text[i+1 : i+1+end])
		if id, ok := emotionMap[token]; ok {
			ids = append(ids, id)
			i += end + 1
		}
	}
	return ids
}

// Strip removes every recognised emotion tag from text and collapses the
// doubled spaces tag removal leaves behind. Unknown bracketed sequences are
// kept verbatim.
func Strip(text string, emotionMap map[string]int) string {
	if len(emotionMap) == 0 || !strings.ContainsRune(text, '[') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			b.WriteByte(text[i])
			continue
		}
		end := strings.IndexByte(text[i+1:], ']')
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		token := strings.ToLower(text[i+1 : i+1+end])
		if _, ok := emotionMap[token]; ok {
			i += end + 1
			continue
		}
		b.WriteByte(text[i])
	}

	return collapseSpaces(b.String())
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
