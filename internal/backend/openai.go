package backend

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/stream"
)

// OpenAIChat streams replies from an OpenAI-compatible chat completion
// endpoint. Each delta is handed on as a raw chunk so the same assembler
// handles both backends.
type OpenAIChat struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIChat(apiKey, baseURL, model string, logger *zap.Logger) *OpenAIChat {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &OpenAIChat{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("openai"),
	}
}

func (o *OpenAIChat) OpenStream(ctx context.Context, message string) (stream.Source, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Stream: true,
	}

	s, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError("chat-completion", err)
	}
	o.logger.Debug("completion stream opened", zap.String("model", o.model))
	return &openAISource{stream: s}, nil
}

func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &HTTPError{Op: op, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &HTTPError{Op: op, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return &TransportError{Op: op, Err: err}
}

type openAISource struct {
	stream *openai.ChatCompletionStream
}

func (s *openAISource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, classifyOpenAIError("chat-completion-read", err)
	}
	if len(resp.Choices) == 0 {
		return []byte{}, nil
	}
	return []byte(resp.Choices[0].Delta.Content), nil
}

func (s *openAISource) Close() error {
	return s.stream.Close()
}
