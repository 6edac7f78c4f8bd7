// Package episode assembles chaptered episodes from packed chunks and their
// synthesis outcomes.
package episode

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/segment"
	"github.com/loqalabs/loqa-narrate/internal/synth"
)

const idPrefix = "ep_"

type SourceType string

const (
	SourceText     SourceType = "text"
	SourceDocument SourceType = "document"
)

type Chapter struct {
	Index           int    `json:"index"`
	Title           string `json:"title"`
	StartSeconds    int    `json:"start_seconds"`
	DurationSeconds int    `json:"duration_seconds"`
	Text            string `json:"text"`
	// Artifact is empty when the chapter's audio failed to synthesize.
	Artifact string `json:"artifact,omitempty"`
}

type Episode struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Text            string     `json:"text"`
	WordCount       int        `json:"word_count"`
	DurationSeconds int        `json:"duration_seconds"`
	Chapters        []Chapter  `json:"chapters"`
	Source          SourceType `json:"source_type"`
	CreatedAt       time.Time  `json:"created_at"`
	// PersistedID is assigned by the repository after a successful save.
	PersistedID string `json:"persisted_id,omitempty"`
}

// ID derives the episode identifier from the full source text.
func ID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return idPrefix + hex.EncodeToString(sum[:])
}

// BuildChapters titles and times each chunk. Offsets are cumulative.
func BuildChapters(chunks []segment.Chunk, wordsPerMinute int) []Chapter {
	chapters := make([]Chapter, 0, len(chunks))
	offset := 0
	for _, c := range chunks {
		d := segment.EstimateSeconds(c.Content, wordsPerMinute)
		chapters = append(chapters, Chapter{
			Index:           c.Index,
			Title:           segment.Title(c),
			StartSeconds:    offset,
			DurationSeconds: d,
			Text:            c.Content,
		})
		offset += d
	}
	return chapters
}

type Input struct {
	Text      string
	Title     string
	Source    SourceType
	Chapters  []Chapter
	Synthesis synth.Result
	// Now stamps CreatedAt; zero means time.Now.
	Now time.Time
}

// Assemble builds the episode record. Durations are text estimates and do
// not depend on which chapters produced audio.
func Assemble(in Input) (Episode, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Episode{}, &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if len(in.Chapters) == 0 {
		return Episode{}, &ValidationError{Field: "chapters", Message: "episode needs at least one chapter"}
	}

	chapters := AttachArtifacts(in.Chapters, in.Synthesis)
	total := 0
	for _, ch := range chapters {
		total += ch.DurationSeconds
	}

	source := in.Source
	if source == "" {
		source = SourceText
	}
	created := in.Now
	if created.IsZero() {
		created = time.Now()
	}

	return Episode{
		ID:              ID(in.Text),
		Title:           resolveTitle(in.Title, chapters),
		Text:            in.Text,
		WordCount:       segment.WordCount(in.Text),
		DurationSeconds: total,
		Chapters:        chapters,
		Source:          source,
		CreatedAt:       created.UTC(),
	}, nil
}

// AttachArtifacts returns a copy of chapters with the artifact of every
// successful outcome in result attached. It also serves partial results.
func AttachArtifacts(chapters []Chapter, result synth.Result) []Chapter {
	artifacts := make(map[int]string, len(result.Outcomes))
	for _, out := range result.Outcomes {
		if out.OK() {
			artifacts[out.Index] = out.Artifact
		}
	}
	attached := make([]Chapter, len(chapters))
	for i, ch := range chapters {
		ch.Artifact = artifacts[ch.Index]
		attached[i] = ch
	}
	return attached
}

func resolveTitle(title string, chapters []Chapter) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return chapters[0].Title
}
