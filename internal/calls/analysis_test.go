package calls

import (
	"context"
	"errors"
	"testing"

	"github.com/voicepartnerai/platform/internal/providers"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastPrompt string
	lastTurns  []providers.Turn
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, turns []providers.Turn) (providers.Reply, error) {
	f.lastPrompt = systemPrompt
	f.lastTurns = turns
	if f.err != nil {
		return providers.Reply{}, f.err
	}
	return providers.Reply{Content: f.reply, TokensUsed: 42}, nil
}

func TestAnalyzeParsesReply(t *testing.T) {
	llm := &fakeCompleter{reply: "Positive | book appointment\n"}
	analyzer := NewAnalyzer(llm)

	got, err := analyzer.Analyze(context.Background(), "caller: I'd like to book a slot")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Sentiment != "positive" || got.Intent != "book appointment" {
		t.Fatalf("analysis = %+v", got)
	}
	if len(llm.lastTurns) != 1 || llm.lastTurns[0].Role != "user" {
		t.Fatalf("turns = %+v", llm.lastTurns)
	}
}

func TestAnalyzeRejectsBadReplies(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"no separator", "the caller seemed happy"},
		{"unknown sentiment", "ecstatic|book appointment"},
		{"empty intent", "neutral| "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := NewAnalyzer(&fakeCompleter{reply: tc.reply})
			if _, err := analyzer.Analyze(context.Background(), "transcript"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAnalyzeRequiresTranscript(t *testing.T) {
	analyzer := NewAnalyzer(&fakeCompleter{reply: "neutral|unknown"})
	if _, err := analyzer.Analyze(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank transcript")
	}
}

func TestAnalyzePropagatesProviderError(t *testing.T) {
	wantErr := errors.New("model overloaded")
	analyzer := NewAnalyzer(&fakeCompleter{err: wantErr})
	if _, err := analyzer.Analyze(context.Background(), "transcript"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrap of %v", err, wantErr)
	}
}
