package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/llm"
)

// stubReasoner returns a scripted response or error.
type stubReasoner struct {
	response string
	err      error
	calls    int
}

func (s *stubReasoner) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestClassifyParsesStructuredResponse(t *testing.T) {
	stub := &stubReasoner{response: `{"category": "CHECKOUT_BREAK", "confidence": 0.99, "urgency": 10, "reasoning": "Revenue blocker."}`}
	c := New(stub, nil)

	result := c.Classify(context.Background(), "The checkout page is blank after the latest migration!")
	require.Equal(t, domain.CategoryCheckoutBreak, result.Category)
	require.Equal(t, 0.99, result.Confidence)
	require.Equal(t, 10, result.Urgency)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	stub := &stubReasoner{response: "```json\n{\"category\": \"WEBHOOK_FAIL\", \"confidence\": 0.9, \"urgency\": 7, \"reasoning\": \"x\"}\n```"}
	c := New(stub, nil)
	result := c.Classify(context.Background(), "webhook timeouts")
	require.Equal(t, domain.CategoryWebhookFail, result.Category)
}

func TestClassifyCorrectsOutOfSetCategory(t *testing.T) {
	stub := &stubReasoner{response: `{"category": "SOMETHING_ELSE", "confidence": 0.8, "urgency": 6, "reasoning": "x"}`}
	c := New(stub, nil)
	result := c.Classify(context.Background(), "mystery issue")
	require.Equal(t, domain.CategoryAPIError, result.Category)
	require.Equal(t, 0.8, result.Confidence)
}

func TestClassifyFallbackOnCallFailure(t *testing.T) {
	stub := &stubReasoner{err: errors.New("quota exhausted")}
	c := New(stub, nil)
	result := c.Classify(context.Background(), "anything")
	require.Equal(t, domain.CategoryAPIError, result.Category)
	require.Equal(t, 0.0, result.Confidence)
	require.Equal(t, 5, result.Urgency)
	require.Contains(t, result.Reasoning, "quota exhausted")
}

func TestClassifyFallbackOnMalformedResponse(t *testing.T) {
	stub := &stubReasoner{response: "sorry, I cannot help with that"}
	c := New(stub, nil)
	result := c.Classify(context.Background(), "anything")
	require.Equal(t, domain.CategoryAPIError, result.Category)
	require.Equal(t, 0.0, result.Confidence)
}

func TestClassifyClampsBounds(t *testing.T) {
	stub := &stubReasoner{response: `{"category": "API_ERROR", "confidence": 1.7, "urgency": 15, "reasoning": "x"}`}
	c := New(stub, nil)
	result := c.Classify(context.Background(), "overflow")
	require.Equal(t, 1.0, result.Confidence)
	require.Equal(t, 10, result.Urgency)

	stub.response = `{"category": "API_ERROR", "confidence": -0.2, "urgency": 0, "reasoning": "x"}`
	result = c.Classify(context.Background(), "underflow")
	require.Equal(t, 0.0, result.Confidence)
	require.Equal(t, 1, result.Urgency)
}
