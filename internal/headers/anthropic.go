package headers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

const anthropicMaxTokens = 4096

// AnthropicInferrer asks an Anthropic messages model.
type AnthropicInferrer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicInferrer creates an inferrer.
func NewAnthropicInferrer(apiKey, model string, opts ...option.RequestOption) *AnthropicInferrer {
	if model == "" {
		model = DefaultAnthropicModel
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicInferrer{client: anthropic.NewClient(options...), model: model}
}

// Infer implements Inferrer.
func (p *AnthropicInferrer) Infer(ctx context.Context, req Request) (Result, error) {
	prompt, err := userPrompt(normalizeCells(req.Cells))
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "failed to build prompt", err)
	}

	var content []anthropic.ContentBlockParamUnion
	if len(req.Image) > 0 && isImage(req.MIME) {
		content = append(content, anthropic.NewImageBlockBase64(imageMIME(req.MIME), base64.StdEncoding.EncodeToString(req.Image)))
	}
	content = append(content, anthropic.NewTextBlock(prompt+"\nRespond with the JSON object only."))

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(content...)},
	})
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "Anthropic request failed", err).
			WithDetail("model", p.model)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	res, err := Parse([]byte(text.String()))
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersShape, fmt.Sprintf("unusable Anthropic answer: %v", err), err)
	}
	return res, nil
}
