package episode

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/loqalabs/loqa-narrate/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDIsContentAddressed(t *testing.T) {
	a := ID("The same text.")
	assert.Equal(t, a, ID("The same text."))
	assert.NotEqual(t, a, ID("The same text!"))
	assert.True(t, strings.HasPrefix(a, "ep_"))
	assert.Len(t, a, len("ep_")+64)
}

func TestBuildChapters(t *testing.T) {
	chunks := []segment.Chunk{
		{Index: 0, Content: strings.Repeat("word ", 150)},
		{Index: 1, Content: "Ten words make up this chunk of text for the test."},
		{Index: 2, Content: "..."},
	}

	chapters := BuildChapters(chunks, 150)
	require.Len(t, chapters, 3)

	assert.Equal(t, 0, chapters[0].StartSeconds)
	assert.Equal(t, 60, chapters[0].DurationSeconds)
	assert.Equal(t, "word word word word word word word word", chapters[0].Title)

	assert.Equal(t, 60, chapters[1].StartSeconds)
	assert.Equal(t, 5, chapters[1].DurationSeconds)
	assert.Equal(t, "Ten words make up this chunk of text", chapters[1].Title)

	assert.Equal(t, 65, chapters[2].StartSeconds)
	assert.Equal(t, "Chapter 3", chapters[2].Title)
}

func TestAssembleAttachesArtifacts(t *testing.T) {
	text := "Alpha beta. Gamma delta. Epsilon zeta."
	chunks := segment.Pack(text, 13)
	require.Len(t, chunks, 3)
	chapters := BuildChapters(chunks, 150)

	result := synth.Result{Outcomes: []synth.Outcome{
		{Index: 0, Artifact: "a0", Seconds: 1},
		{Index: 1, Err: "status 500"},
		{Index: 2, Artifact: "a2", Seconds: 1},
	}}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ep, err := Assemble(Input{Text: text, Chapters: chapters, Synthesis: result, Now: now})
	require.NoError(t, err)

	assert.Equal(t, ID(text), ep.ID)
	assert.Equal(t, "a0", ep.Chapters[0].Artifact)
	assert.Empty(t, ep.Chapters[1].Artifact)
	assert.Equal(t, "a2", ep.Chapters[2].Artifact)
	assert.Equal(t, 6, ep.WordCount)
	// durations come from text, failed chapters included
	assert.Equal(t, 3, ep.DurationSeconds)
	assert.Equal(t, SourceText, ep.Source)
	assert.Equal(t, now, ep.CreatedAt)
	assert.Equal(t, "Alpha beta", ep.Title)
	assert.Empty(t, ep.PersistedID)
}

func TestAttachArtifactsLeavesInputUntouched(t *testing.T) {
	chapters := BuildChapters(segment.Pack("One. Two.", 5), 150)
	require.Len(t, chapters, 2)

	attached := AttachArtifacts(chapters, synth.Result{Outcomes: []synth.Outcome{{Index: 1, Artifact: "a1"}}})
	assert.Empty(t, attached[0].Artifact)
	assert.Equal(t, "a1", attached[1].Artifact)
	assert.Empty(t, chapters[1].Artifact)
}

func TestAssembleUsesGivenTitle(t *testing.T) {
	chapters := BuildChapters(segment.Pack("Body text.", 100), 150)
	ep, err := Assemble(Input{Text: "Body text.", Title: "  Lecture 4  ", Source: SourceDocument, Chapters: chapters})
	require.NoError(t, err)
	assert.Equal(t, "Lecture 4", ep.Title)
	assert.Equal(t, SourceDocument, ep.Source)
	assert.False(t, ep.CreatedAt.IsZero())
}

func TestAssembleRejectsEmptyInput(t *testing.T) {
	_, err := Assemble(Input{Text: "  "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "text", verr.Field)

	_, err = Assemble(Input{Text: "Some text."})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "chapters", verr.Field)
}
