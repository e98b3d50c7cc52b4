package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type gptReply struct {
	Reply      string  `json:"reply"`
	Confidence float64 `json:"confidence"`
}

// GPTResponder implements Responder on top of the OpenAI chat API. The model
// is asked to self-report a confidence so the caller can apply the fallback
// threshold uniformly across responder implementations.
type GPTResponder struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTResponder(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTResponder {
	return &GPTResponder{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (r *GPTResponder) Respond(ctx context.Context, text string) (string, float64, error) {
	prompt := fmt.Sprintf(`You are a polite assistant answering short messages sent to a
business account on a professional network. Answer the message below in one
or two sentences, and estimate how confident you are that the answer is
relevant, from 0.0 to 1.0.

Return the response as a JSON object with this structure:
{
    "reply": "your_answer",
    "confidence": 0.0
}

Message: %s`, text)

	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   r.maxTokens,
			Temperature: float32(r.temperature),
		},
	)
	if err != nil {
		r.logger.Error("failed to get model response", zap.Error(err))
		return "", 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("chat completion returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed gptReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		r.logger.Error("failed to parse model response",
			zap.Error(err),
			zap.String("response", raw))
		return "", 0, fmt.Errorf("parse model response: %w", err)
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return parsed.Reply, parsed.Confidence, nil
}

// StaticResponder answers everything with zero confidence, forcing the
// fallback template. Used when no model credentials are configured.
type StaticResponder struct{}

func (StaticResponder) Respond(ctx context.Context, text string) (string, float64, error) {
	return "", 0, nil
}
