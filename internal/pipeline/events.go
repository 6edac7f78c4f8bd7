package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loqalabs/loqa-narrate/internal/episode"
	"github.com/loqalabs/loqa-narrate/internal/protocol"
)

// Publisher is the subset of *nats.Conn used to emit events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// BusEvents publishes episode lifecycle events on the bus.
type BusEvents struct {
	conn Publisher
}

func NewBusEvents(conn Publisher) *BusEvents {
	return &BusEvents{conn: conn}
}

func (b *BusEvents) PublishCreated(_ context.Context, ep episode.Episode, partialErrors int) error {
	data, err := json.Marshal(protocol.EpisodeCreated{
		EpisodeID:       ep.ID,
		PersistedID:     ep.PersistedID,
		Title:           ep.Title,
		ChapterCount:    len(ep.Chapters),
		DurationSeconds: ep.DurationSeconds,
		PartialErrors:   partialErrors,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.conn.Publish(protocol.SubjectEpisodeCreated, data)
}

// ToProtocol converts a response into its wire form.
func ToProtocol(resp Response) *protocol.Episode {
	out := &protocol.Episode{
		EpisodeID:            resp.EpisodeID,
		PersistedID:          resp.PersistedID,
		Title:                resp.Title,
		Chapters:             make([]protocol.Chapter, 0, len(resp.Chapters)),
		TotalDurationSeconds: resp.TotalDurationSeconds,
		WordCount:            resp.WordCount,
	}
	for _, ch := range resp.Chapters {
		out.Chapters = append(out.Chapters, protocol.Chapter{
			Index:           ch.Index,
			Title:           ch.Title,
			StartSeconds:    ch.StartSeconds,
			DurationSeconds: ch.DurationSeconds,
			Artifact:        ch.Artifact,
		})
	}
	for _, e := range resp.PartialErrors {
		out.PartialErrors = append(out.PartialErrors, protocol.ChunkError{Index: e.Index, Message: e.Message})
	}
	return out
}
