// Package classifier maps raw ticket text to a category, confidence and
// urgency via the reasoning service, with a deterministic fallback.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/pkg/util"
)

const systemPrompt = `You are a Tier 3 Support AI for a Headless Commerce platform.
Your task is to classify incoming support tickets into specific technical categories.

Output must be valid JSON with the following schema:
{
    "category": "One of [API_ERROR, CONFIG_ERROR, WEBHOOK_FAIL, CHECKOUT_BREAK, DOCS_CONFUSION]",
    "confidence": float (0.0 to 1.0),
    "urgency": int (1 to 10),
    "reasoning": "Brief explanation of why"
}

Few-shot Examples:

Ticket: "POST /v1/cart returns 500 error when sending skus array."
Response: {"category": "API_ERROR", "confidence": 0.98, "urgency": 8, "reasoning": "Explicit 500 error on API endpoint."}

Ticket: "I can't find where to reset my secret key in the dashboard."
Response: {"category": "DOCS_CONFUSION", "confidence": 0.95, "urgency": 3, "reasoning": "User needs navigational help, not a bug."}

Ticket: "Orders are not syncing to our ERP. The webhook logs show timeout."
Response: {"category": "WEBHOOK_FAIL", "confidence": 0.90, "urgency": 7, "reasoning": "Webhook specific failure mentioned."}

Ticket: "The checkout page is blank after the latest migration!"
Response: {"category": "CHECKOUT_BREAK", "confidence": 0.99, "urgency": 10, "reasoning": "Critical blocker affecting revenue."}

Ticket: "Rate limit headers are missing from response."
Response: {"category": "CONFIG_ERROR", "confidence": 0.85, "urgency": 4, "reasoning": "Likely a gateway configuration issue."}

Now classify the following ticket:
`

// Classifier classifies ticket text through the reasoning service.
type Classifier struct {
	client llm.ReasoningClient
	logger *zap.Logger
}

// New constructs a Classifier.
func New(client llm.ReasoningClient, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, logger: logger}
}

// Classify returns a classification for text. It never fails: any call or
// parse error degrades to the deterministic fallback whose confidence of
// exactly 0.0 marks the ticket as unclassified.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Classification {
	result, err := c.classify(ctx, text)
	if err != nil {
		c.logger.Error("classification failed, using fallback", zap.Error(err))
		return fallback(err)
	}
	return result
}

func (c *Classifier) classify(ctx context.Context, text string) (domain.Classification, error) {
	prompt := fmt.Sprintf("%s\nTicket: %q\nResponse:", systemPrompt, text)

	raw, err := c.client.Generate(ctx, prompt, llm.GenerateOptions{
		Temperature:      0.1,
		StructuredOutput: true,
	})
	if err != nil {
		return domain.Classification{}, util.NewDependencyFailure("reasoning service", err)
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &result); err != nil {
		return domain.Classification{}, util.NewMalformedResponse("reasoning service", err)
	}

	if !result.Category.IsValid() {
		// An unrecognized issue is treated as technically severe rather
		// than silently dropped.
		c.logger.Warn("invalid category returned, defaulting to API_ERROR",
			zap.String("category", string(result.Category)))
		result.Category = domain.CategoryAPIError
	}
	result.Confidence = clampFloat(result.Confidence, 0, 1)
	result.Urgency = clampInt(result.Urgency, 1, 10)
	return result, nil
}

func fallback(err error) domain.Classification {
	return domain.Classification{
		Category:   domain.CategoryAPIError,
		Confidence: 0.0,
		Urgency:    5,
		Reasoning:  fmt.Sprintf("Classifier failed: %v", err),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
