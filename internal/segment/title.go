package segment

import (
	"fmt"
	"strings"
	"unicode"
)

const titleMaxWords = 8

// Title derives a short chapter title from the leading words of a chunk.
func Title(c Chunk) string {
	return TitleFor(c.Content, c.Index)
}

// TitleFor returns the first eight whitespace-delimited words of content
// joined by single spaces, with trailing punctuation and leading symbols
// removed. It falls back to "Chapter N" (1-based) when nothing is left.
func TitleFor(content string, index int) string {
	words := strings.Fields(content)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}

	title := strings.TrimRightFunc(strings.Join(words, " "), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,!?;:", r)
	})
	title = strings.TrimLeftFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if title == "" {
		return fmt.Sprintf("Chapter %d", index+1)
	}
	return title
}
