package segment_test

import (
	"strings"
	"testing"

	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lecture = `Photosynthesis converts light energy into chemical energy. It takes place in the chloroplasts of plant cells. The process has two stages.

The light-dependent reactions happen in the thylakoid membranes! They produce ATP and NADPH. Water is split and oxygen is released as a by-product.

The Calvin cycle happens in the stroma. It uses ATP and NADPH to fix carbon dioxide into sugars. Why does this matter? Nearly all life depends on it`

func contents(chunks []segment.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}

func TestPackEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, segment.Pack("", 100))
	assert.Empty(t, segment.Pack("   \n\n\t ", 100))
}

func TestPackFastPath(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Short text.",
		"  padded text with no punctuation  ",
		"Two paragraphs.\n\nStill short.",
	}
	for _, input := range inputs {
		chunks := segment.Pack(input, 100)
		require.Len(t, chunks, 1, input)
		assert.Equal(t, strings.TrimSpace(input), chunks[0].Content)
		assert.Equal(t, 0, chunks[0].Index)
		assert.True(t, chunks[0].StartsParagraph)
	}
}

func TestPackThreeSentencesTwentyChars(t *testing.T) {
	t.Parallel()

	chunks := segment.Pack("First sentence. Second sentence. Third sentence.", 20)

	assert.Equal(t, []string{"First sentence.", "Second sentence.", "Third sentence."}, contents(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content)
		assert.LessOrEqual(t, c.Len(), 20)
	}
}

func TestPackAccumulatesUnderBudget(t *testing.T) {
	t.Parallel()

	chunks := segment.Pack("One two. Three four. Five six. Seven eight.", 20)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 20)
	}
	assert.Equal(t, []string{"One two. Three four.", "Five six.", "Seven eight."}, contents(chunks))
}

func TestPackParagraphMarker(t *testing.T) {
	t.Parallel()

	chunks := segment.Pack("Alpha one. Beta two.\n\nGamma three. Delta four. Epsilon five.", 40)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "Alpha one. Beta two.\nGamma three.", chunks[0].Content)
	assert.True(t, chunks[0].StartsParagraph)
	assert.Equal(t, "Delta four. Epsilon five.", chunks[1].Content)
	assert.False(t, chunks[1].StartsParagraph)
}

func TestPackOversizedSentenceSplitsAtWords(t *testing.T) {
	t.Parallel()

	long := "This single sentence is far too long to fit inside one small chunk budget."
	chunks := segment.Pack("Intro here. "+long+" Outro.", 25)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 25, c.Content)
	}
	assert.Equal(t, "Intro here.", chunks[0].Content)
	assert.Equal(t, "Outro.", chunks[len(chunks)-1].Content)
	assert.Equal(t, strings.Fields("Intro here. "+long+" Outro."), strings.Fields(strings.Join(contents(chunks), " ")))
}

func TestPackLongWordBaseline(t *testing.T) {
	t.Parallel()

	token := strings.Repeat("x", 50)
	chunks := segment.Pack("Start here. Id "+token+" end of it.", 20)

	var overLength []string
	for _, c := range chunks {
		if c.Len() > 20 {
			overLength = append(overLength, c.Content)
		}
	}
	assert.Equal(t, []string{token}, overLength)
}

func TestPackLongWordHardSplit(t *testing.T) {
	t.Parallel()

	token := strings.Repeat("y", 45)
	packer := segment.Packer{MaxChars: 20, SplitLongWords: true}
	chunks := packer.Pack("Start here. " + token + " done.")

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 20, c.Content)
	}
	assert.Equal(t, []string{"Start here.", strings.Repeat("y", 20), strings.Repeat("y", 20), strings.Repeat("y", 5), "done."}, contents(chunks))
}

func TestPackMultibyteCharacters(t *testing.T) {
	t.Parallel()

	chunks := segment.Pack("Ça va très bien. Über alles schön. Ñandú corre rápido.", 20)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 20, c.Content)
	}
	assert.Equal(t, []string{"Ça va très bien.", "Über alles schön.", "Ñandú corre rápido."}, contents(chunks))
}

func TestPackPreservesWordsAndBounds(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{15, 40, 80, 150, 400} {
		chunks := segment.Pack(lecture, limit)
		require.NotEmpty(t, chunks)

		assert.Equal(t, strings.Fields(lecture), strings.Fields(strings.Join(contents(chunks), " ")), "limit %d", limit)
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			if len(strings.Fields(c.Content)) > 1 {
				assert.LessOrEqual(t, c.Len(), limit, "limit %d chunk %q", limit, c.Content)
			}
		}
	}
}

func TestPackIsPure(t *testing.T) {
	t.Parallel()

	assert.Equal(t, segment.Pack(lecture, 60), segment.Pack(lecture, 60))
}

func TestPackDefaultBudget(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("Word after word goes here. ", 80)
	chunks := segment.Pack(text, 0)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), segment.DefaultMaxChars)
	}
}
