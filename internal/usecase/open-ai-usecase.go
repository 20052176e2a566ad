package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/iamvkosarev/ira-companion/config"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/sashabaranov/go-openai"
)

// OpenAIUsecase talks to the upstream completion endpoint. It never retries;
// retry policy belongs to the caller.
type OpenAIUsecase struct {
	client *openai.Client
	cfg    config.OpenAI
}

func NewOpenAIUsecase(cfg config.OpenAI) *OpenAIUsecase {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIUsecase{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Stream opens a one-shot fragment stream for the prompt. The caller must
// drain it to io.EOF or Close it; an abandoned stream leaks the transport.
func (u *OpenAIUsecase) Stream(ctx context.Context, messages []openai.ChatCompletionMessage) (GenerationStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       u.cfg.OpenAIModel,
		Temperature: u.cfg.ModelTemperature,
		TopP:        1,
		N:           1,
		Messages:    messages,
		Stream:      true,
	}

	stream, err := u.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", model.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
	}
	return &generation{stream: stream}, nil
}

type generation struct {
	stream  *openai.ChatCompletionStream
	started bool
}

func (g *generation) Recv() (string, error) {
	response, err := g.stream.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		if !g.started {
			if errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: %w", model.ErrUpstreamTimeout, err)
			}
			return "", fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
		}
		return "", fmt.Errorf("%w: %w", model.ErrUpstreamInterrupted, err)
	}
	g.started = true
	if len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Delta.Content, nil
}

func (g *generation) Close() {
	g.stream.Close()
}
