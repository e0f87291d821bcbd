// Package providers wraps the third-party voice, LLM, and speech services.
// Every outbound call carries a bounded timeout; a provider timeout surfaces
// as an error and never partially mutates platform state.
package providers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultLLMTimeout = 30 * time.Second

// LLMOptions configure the assistant brain.
type LLMOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLM generates assistant replies through the OpenAI API.
type LLM struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewLLM(opts LLMOptions) (*LLM, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm: api key required")
	}
	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if strings.TrimSpace(opts.BaseURL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	model := opts.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &LLM{client: openai.NewClient(requestOpts...), model: model, timeout: timeout}, nil
}

// Turn is one exchange in the running conversation.
type Turn struct {
	Role    string
	Content string
}

// Reply carries the assistant's answer plus token accounting for the usage log.
type Reply struct {
	Content    string
	TokensUsed int64
}

// Complete produces the assistant's next reply for a call transcript.
func (l *LLM) Complete(ctx context.Context, systemPrompt string, turns []Turn) (Reply, error) {
	if l == nil {
		return Reply{}, errors.New("llm: not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, turn := range turns {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    l.model,
		Messages: messages,
	})
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("llm: empty completion")
	}
	return Reply{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
