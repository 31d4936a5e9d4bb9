package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/models"
)

// Service classifies a single piece of text
type Service interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

// ServiceFunc adapts a function to Service
type ServiceFunc func(ctx context.Context, text string) (models.Classification, error)

// Classify calls f
func (f ServiceFunc) Classify(ctx context.Context, text string) (models.Classification, error) {
	return f(ctx, text)
}

const systemPrompt = `You are an expert in prompts written for generative AI tools. For each post you decide:
1. whether the post contains a prompt meant for an AI model (ChatGPT, Claude, Midjourney, DALL-E, Stable Diffusion or another tool)
2. which tool the prompt targets
3. how confident you are that it really is a prompt, from 0 to 1

Answer with JSON only:
{"isMatch": true|false, "category": "ChatGPT|Claude|Midjourney|DALL-E|Stable Diffusion|Other", "confidence": 0.0-1.0, "reasoning": "short explanation"}`

// verdictSchema constrains structured output to the verdict shape
const verdictSchema = `{
  "type": "object",
  "properties": {
    "isMatch": {"type": "boolean"},
    "category": {"type": "string", "enum": ["ChatGPT", "Claude", "Midjourney", "DALL-E", "Stable Diffusion", "Other"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["isMatch", "category", "confidence", "reasoning"],
  "additionalProperties": false
}`

func userPrompt(text string) string {
	return fmt.Sprintf("Does this post contain an AI prompt?\n\n%q", text)
}

// verdict is the wire shape both backends return
type verdict struct {
	IsMatch    *bool    `json:"isMatch"`
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// parseVerdict decodes and validates a service response
func parseVerdict(raw string) (models.Classification, error) {
	raw = strings.TrimSpace(raw)
	// models sometimes wrap JSON in a markdown fence
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var v verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return models.Classification{}, &errs.ClassificationError{Reason: "malformed response", Err: err}
	}
	if v.IsMatch == nil || v.Confidence == nil {
		return models.Classification{}, &errs.ClassificationError{Reason: "response is missing isMatch or confidence"}
	}
	if *v.Confidence < 0 || *v.Confidence > 1 {
		return models.Classification{}, &errs.ClassificationError{Reason: fmt.Sprintf("confidence %v out of range", *v.Confidence)}
	}

	return models.Classification{
		IsMatch:    *v.IsMatch,
		Category:   models.NormalizeCategory(v.Category),
		Confidence: *v.Confidence,
		Reasoning:  v.Reasoning,
	}, nil
}

// Degraded is the verdict recorded for an item whose classification failed
func Degraded(err error) models.Classification {
	return models.Classification{
		IsMatch:    false,
		Category:   models.CategoryOther,
		Confidence: 0,
		Reasoning:  "error: " + err.Error(),
	}
}
