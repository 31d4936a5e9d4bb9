package classifier

import (
	"context"
	"errors"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// completeFunc sends one structured-output prompt and returns the raw text
type completeFunc func(system, user, schema string) (string, error)

// AnthropicService classifies with a Claude model using structured output
type AnthropicService struct {
	complete completeFunc
	model    string
	logger   logger.Logger
}

// NewAnthropicService creates a service for apiKey and model
func NewAnthropicService(apiKey, model string, maxTokens int, temperature float64, log logger.Logger) *AnthropicService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	settings := types.RequestSettings{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopK:        0,
		TopP:        0.0,
	}

	return &AnthropicService{
		model:  model,
		logger: log,
		complete: func(system, user, schema string) (string, error) {
			response, err := anthropic.PromptWithSettings(system, user, schema, apiKey, settings)
			if err != nil {
				return "", err
			}
			if len(response.Content) == 0 {
				return "", errors.New("no content in response")
			}
			return response.Content[0].Text, nil
		},
	}
}

// Classify asks the model for a verdict on text
func (s *AnthropicService) Classify(ctx context.Context, text string) (models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return models.Classification{}, err
	}

	raw, err := s.complete(systemPrompt, userPrompt(text), verdictSchema)
	if err != nil {
		s.logger.WithError(err).WarnWithFields("classification request failed", map[string]interface{}{
			"model": s.model,
		})
		return models.Classification{}, &errs.ClassificationError{Reason: "anthropic request failed", Err: err}
	}

	return parseVerdict(raw)
}
