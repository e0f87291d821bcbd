package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voicepartnerai/platform/internal/providers"
)

// completer is the slice of the LLM provider the analyzer needs.
type completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []providers.Turn) (providers.Reply, error)
}

const analysisSystemPrompt = "You classify completed voice calls. " +
	"Given a call transcript, answer with exactly one line of the form " +
	"sentiment|intent. Sentiment is one of positive, neutral, negative. " +
	"Intent is a short lowercase phrase naming what the caller wanted."

// Analyzer derives post-call sentiment and caller intent from a transcript.
type Analyzer struct {
	llm completer
}

func NewAnalyzer(llm completer) *Analyzer {
	return &Analyzer{llm: llm}
}

// CallAnalysis carries the classification for one finished call.
type CallAnalysis struct {
	Sentiment string
	Intent    string
}

// Analyze classifies a transcript. The model is instructed to reply with a
// single "sentiment|intent" line; anything else is rejected rather than
// written into the ledger.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (CallAnalysis, error) {
	if a == nil || a.llm == nil {
		return CallAnalysis{}, errors.New("analyzer not configured")
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return CallAnalysis{}, errors.New("transcript required")
	}

	reply, err := a.llm.Complete(ctx, analysisSystemPrompt, []providers.Turn{
		{Role: "user", Content: transcript},
	})
	if err != nil {
		return CallAnalysis{}, fmt.Errorf("analyze transcript: %w", err)
	}

	sentiment, intent, found := strings.Cut(strings.TrimSpace(reply.Content), "|")
	if !found {
		return CallAnalysis{}, fmt.Errorf("malformed analysis reply %q", reply.Content)
	}
	sentiment = strings.ToLower(strings.TrimSpace(sentiment))
	intent = strings.ToLower(strings.TrimSpace(intent))
	switch sentiment {
	case "positive", "neutral", "negative":
	default:
		return CallAnalysis{}, fmt.Errorf("unknown sentiment %q", sentiment)
	}
	if intent == "" {
		return CallAnalysis{}, errors.New("analysis reply carries no intent")
	}
	return CallAnalysis{Sentiment: sentiment, Intent: intent}, nil
}
