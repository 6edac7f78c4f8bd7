// Package segment turns extracted document text into bounded, sentence-aligned
// chunks ready for speech synthesis, and derives chapter titles and reading
// time estimates from them.
package segment

import (
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var blankLines = regexp.MustCompile(`\n[ \t\f\v]*\n\s*`)

// Sentence is one sentence of the source text.
type Sentence struct {
	Text           string
	Paragraph      int
	ParagraphStart bool
}

// Len reports the sentence length in characters.
func (s Sentence) Len() int {
	return utf8.RuneCountInString(s.Text)
}

// Split yields the sentences of text in document order, grouped by paragraph.
//
// A sentence ends at a run of '.', '!' or '?' followed by whitespace and an
// uppercase letter, or at the end of its paragraph. Abbreviations such as
// "Dr. Smith" and similar constructs are split too; that is accepted.
func Split(text string) iter.Seq[Sentence] {
	return func(yield func(Sentence) bool) {
		paragraph := 0
		for _, para := range paragraphs(text) {
			sentences := sentencesOf(para)
			for i, s := range sentences {
				if !yield(Sentence{Text: s, Paragraph: paragraph, ParagraphStart: i == 0}) {
					return
				}
			}
			if len(sentences) > 0 {
				paragraph++
			}
		}
	}
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sentencesOf(paragraph string) []string {
	var fragments []string
	runes := []rune(paragraph)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}
		i = end
		next := end + 1
		if next >= len(runes) || !unicode.IsSpace(runes[next]) {
			continue
		}
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next < len(runes) && !unicode.IsUpper(runes[next]) {
			continue
		}
		fragments = append(fragments, string(runes[start:end+1]))
		start = next
		i = next - 1
	}
	if start < len(runes) {
		fragments = append(fragments, string(runes[start:]))
	}

	sentences := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f = strings.Join(strings.Fields(f), " "); f != "" {
			sentences = append(sentences, f)
		}
	}
	for i := 0; i < len(sentences)-1; i++ {
		last, _ := utf8.DecodeLastRuneInString(sentences[i])
		if !isTerminal(last) {
			sentences[i] += "."
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
