package protocol

import "time"

// GenerateRequest asks for an episode to be narrated from raw text or from a
// previously stored document.
type GenerateRequest struct {
	Text          string `json:"text,omitempty"`
	DocumentRef   string `json:"document_ref,omitempty"`
	Title         string `json:"title,omitempty"`
	Lang          string `json:"lang,omitempty"`
	Slow          bool   `json:"slow,omitempty"`
	MaxChunkChars int    `json:"max_chunk_chars,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
}

type Chapter struct {
	Index           int    `json:"index"`
	Title           string `json:"title"`
	StartSeconds    int    `json:"start_seconds"`
	DurationSeconds int    `json:"duration_seconds"`
	Artifact        string `json:"artifact,omitempty"`
}

type ChunkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Episode summarizes a generated episode for reply payloads.
type Episode struct {
	EpisodeID            string       `json:"episode_id"`
	PersistedID          string       `json:"persisted_id,omitempty"`
	Title                string       `json:"title"`
	Chapters             []Chapter    `json:"chapters"`
	TotalDurationSeconds int          `json:"total_duration_seconds"`
	WordCount            int          `json:"word_count"`
	PartialErrors        []ChunkError `json:"partial_errors,omitempty"`
}

// GenerateReply answers a GenerateRequest. ErrorKind is one of the
// ErrorKind* constants when OK is false.
type GenerateReply struct {
	OK        bool     `json:"ok"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Episode   *Episode `json:"episode,omitempty"`
	TraceID   string   `json:"trace_id,omitempty"`
}

// EpisodeCreated is broadcast after an episode has been persisted.
type EpisodeCreated struct {
	EpisodeID       string    `json:"episode_id"`
	PersistedID     string    `json:"persisted_id"`
	Title           string    `json:"title"`
	ChapterCount    int       `json:"chapter_count"`
	DurationSeconds int       `json:"duration_seconds"`
	PartialErrors   int       `json:"partial_errors"`
	Timestamp       time.Time `json:"timestamp"`
}

// PutDocumentRequest stores text for later generation by reference.
type PutDocumentRequest struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type PutDocumentReply struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

const (
	SubjectEpisodeGenerate = "narrate.episode.generate"
	SubjectEpisodeCreated  = "narrate.episode.created"
	SubjectDocumentPut     = "narrate.document.put"
)

const (
	ErrorKindValidation  = "validation"
	ErrorKindNoArtifacts = "no_artifacts"
	ErrorKindPersistence = "persistence"
	ErrorKindCancelled   = "cancelled"
	ErrorKindInternal    = "internal"
)
