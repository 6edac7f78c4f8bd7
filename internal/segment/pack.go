package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the chunk budget used when none is configured.
const DefaultMaxChars = 1000

// Chunk is a bounded piece of source text, the unit of synthesis.
type Chunk struct {
	Index           int    `json:"index"`
	Content         string `json:"content"`
	StartsParagraph bool   `json:"starts_paragraph"`
}

// Len reports the chunk length in characters.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Content)
}

// Packer packs sentences greedily into chunks of at most MaxChars characters.
type Packer struct {
	MaxChars int
	// SplitLongWords hard-splits a single word longer than MaxChars. When
	// false such a word is emitted alone as an over-length chunk.
	SplitLongWords bool
}

// Pack splits text into chunks of at most maxChars characters using the
// baseline policy.
func Pack(text string, maxChars int) []Chunk {
	return Packer{MaxChars: maxChars}.Pack(text)
}

// Pack splits text into ordered chunks. Whitespace-only text yields none.
func (p Packer) Pack(text string) []Chunk {
	limit := p.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) <= limit {
		return []Chunk{{Index: 0, Content: trimmed, StartsParagraph: true}}
	}

	b := &chunkBuilder{limit: limit, splitWords: p.SplitLongWords}
	for s := range Split(trimmed) {
		b.add(s)
	}
	b.flush()
	return b.chunks
}

type chunkBuilder struct {
	limit      int
	splitWords bool

	chunks          []Chunk
	buf             strings.Builder
	bufLen          int
	startsParagraph bool
}

func (b *chunkBuilder) add(s Sentence) {
	n := s.Len()
	if n > b.limit {
		b.flush()
		b.addOversized(s)
		return
	}
	if b.bufLen == 0 {
		b.start(s.Text, n, s.ParagraphStart)
		return
	}
	if b.bufLen+1+n > b.limit {
		b.flush()
		b.start(s.Text, n, s.ParagraphStart)
		return
	}
	if s.ParagraphStart {
		b.buf.WriteByte('\n')
	} else {
		b.buf.WriteByte(' ')
	}
	b.buf.WriteString(s.Text)
	b.bufLen += 1 + n
}

// addOversized packs the words of a sentence that cannot fit in one chunk.
func (b *chunkBuilder) addOversized(s Sentence) {
	first := s.ParagraphStart
	for _, word := range strings.Fields(s.Text) {
		n := utf8.RuneCountInString(word)
		switch {
		case n > b.limit:
			b.flush()
			b.addLongWord(word, first)
		case b.bufLen == 0:
			b.start(word, n, first)
		case b.bufLen+1+n > b.limit:
			b.flush()
			b.start(word, n, first)
		default:
			b.buf.WriteByte(' ')
			b.buf.WriteString(word)
			b.bufLen += 1 + n
		}
		first = false
	}
	b.flush()
}

func (b *chunkBuilder) addLongWord(word string, startsParagraph bool) {
	if !b.splitWords {
		b.emit(word, startsParagraph)
		return
	}
	runes := []rune(word)
	for i := 0; i < len(runes); i += b.limit {
		end := min(i+b.limit, len(runes))
		b.emit(string(runes[i:end]), startsParagraph && i == 0)
	}
}

func (b *chunkBuilder) start(text string, n int, startsParagraph bool) {
	b.buf.WriteString(text)
	b.bufLen = n
	b.startsParagraph = startsParagraph
}

func (b *chunkBuilder) flush() {
	if b.bufLen > 0 {
		b.emit(b.buf.String(), b.startsParagraph)
	}
	b.buf.Reset()
	b.bufLen = 0
	b.startsParagraph = false
}

func (b *chunkBuilder) emit(content string, startsParagraph bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	b.chunks = append(b.chunks, Chunk{
		Index:           len(b.chunks),
		Content:         content,
		StartsParagraph: startsParagraph,
	})
}
