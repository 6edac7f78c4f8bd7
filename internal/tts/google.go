package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
)

const slowSpeakingRate = 0.5

// GoogleProvider synthesizes MP3 audio with Google Cloud Text-to-Speech.
type GoogleProvider struct {
	client *texttospeech.Client
	voice  string
}

// NewGoogleProvider connects to Cloud Text-to-Speech using application default
// credentials. An empty endpoint selects the public API.
func NewGoogleProvider(ctx context.Context, endpoint, voice string) (*GoogleProvider, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google tts client: %w", err)
	}
	return &GoogleProvider{client: client, voice: voice}, nil
}

// Synthesize ignores opts.Host; the endpoint is fixed when the client is created.
func (g *GoogleProvider) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	if opts.Slow {
		audioCfg.SpeakingRate = slowSpeakingRate
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: opts.Lang,
			Name:         g.voice,
		},
		AudioConfig: audioCfg,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: "synthesize speech", Err: err}
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, &ProviderError{Provider: "google", Message: "received empty audio"}
	}
	return resp.GetAudioContent(), nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleProvider) Close() error {
	return g.client.Close()
}
