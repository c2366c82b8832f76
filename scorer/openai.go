package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const openAISystemPrompt = "You score single lines of text. Reply with a JSON object whose integer field \"score\" is your score for the line the user sends. Always reply with the same score for the same line."

// OpenAIClient defines the interface for interacting with OpenAI API
type OpenAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider scores lines with a chat completion model instead of a
// plain HTTP endpoint.
type OpenAIProvider struct {
	client  OpenAIClient
	model   string
	schema  *jsonschema.Definition
	metrics *MetricsRecorder
}

type openAIScore struct {
	Score int64 `json:"score"`
}

// NewOpenAIProvider creates a provider backed by the OpenAI API
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewOpenAIProviderWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAIProviderWithClient creates a provider around a custom client
func NewOpenAIProviderWithClient(client OpenAIClient, model string) (*OpenAIProvider, error) {
	if model == "" {
		model = openai.GPT4oMini
	}
	schema, err := jsonschema.GenerateSchemaForType(openAIScore{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return &OpenAIProvider{
		client:  client,
		model:   model,
		schema:  schema,
		metrics: NewMetricsRecorder(false),
	}, nil
}

// NewSession returns a session sharing the provider's API client
func (p *OpenAIProvider) NewSession() Session {
	return &openAISession{provider: p}
}

type openAISession struct {
	provider *OpenAIProvider
}

func (s *openAISession) Score(ctx context.Context, line string) (int64, error) {
	p := s.provider
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: openAISystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: line,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "line_score",
				Schema: p.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		p.metrics.RecordAPICall("error", time.Since(start).Seconds())
		return 0, fmt.Errorf("OpenAI API request failed: %w", err)
	}
	p.metrics.RecordAPICall("2xx", time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%w: OpenAI returned no choices", ErrMalformedResponse)
	}

	return parseScore([]byte(resp.Choices[0].Message.Content))
}

// Close is a no-op; the API client is shared for the provider's lifetime
func (s *openAISession) Close() {}
