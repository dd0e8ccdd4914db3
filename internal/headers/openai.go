package headers

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIInferrer asks an OpenAI chat model in JSON mode.
type OpenAIInferrer struct {
	client openai.Client
	model  string
}

// NewOpenAIInferrer creates an inferrer. Extra options are passed to the
// client, e.g. option.WithBaseURL for compatible gateways.
func NewOpenAIInferrer(apiKey, model string, opts ...option.RequestOption) *OpenAIInferrer {
	if model == "" {
		model = DefaultOpenAIModel
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIInferrer{client: openai.NewClient(options...), model: model}
}

// Infer implements Inferrer.
func (p *OpenAIInferrer) Infer(ctx context.Context, req Request) (Result, error) {
	prompt, err := userPrompt(normalizeCells(req.Cells))
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "failed to build prompt", err)
	}

	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt)}
	if len(req.Image) > 0 && isImage(req.MIME) {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    dataURI(req.MIME, req.Image),
			Detail: "high",
		}))
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "OpenAI request failed", err).
			WithDetail("model", p.model)
	}
	if len(completion.Choices) == 0 {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "OpenAI returned no choices", nil)
	}

	res, err := Parse([]byte(completion.Choices[0].Message.Content))
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersShape, fmt.Sprintf("unusable OpenAI answer: %v", err), err)
	}
	return res, nil
}
