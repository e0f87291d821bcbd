package providers

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultSpeechTimeout = 60 * time.Second

// SpeechOptions configure text-to-speech and transcription.
type SpeechOptions struct {
	APIKey  string
	BaseURL string
	Voice   string
	Timeout time.Duration
}

// Speech synthesizes assistant audio and transcribes caller audio.
type Speech struct {
	client  openai.Client
	voice   string
	timeout time.Duration
}

func NewSpeech(opts SpeechOptions) (*Speech, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("speech: api key required")
	}
	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	voice := opts.Voice
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultSpeechTimeout
	}
	return &Speech{client: openai.NewClient(requestOpts...), voice: voice, timeout: timeout}, nil
}

// Synthesize renders text as audio and returns the encoded bytes.
func (s *Speech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("speech: not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("speech: text required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Input: text,
		Voice: openai.AudioSpeechNewParamsVoice(s.voice),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Transcribe converts caller audio into text.
func (s *Speech) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if s == nil {
		return "", errors.New("speech: not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(audio, filename, "application/octet-stream"),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
