package diagnosis

import (
	"fmt"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// buildPrompt assembles the single structured prompt carrying all
// gathered evidence plus format and category-set constraints.
func buildPrompt(ticketText string, classification domain.Classification, merchant *domain.Merchant, evidence domain.EvidenceBundle) string {
	var b strings.Builder

	b.WriteString(`You are the Diagnostician for a Headless Commerce platform. Your goal is to find the Root Cause of the ticket below.

`)
	fmt.Fprintf(&b, "Ticket: %q\n", ticketText)
	fmt.Fprintf(&b, "Classification: %s (confidence %.2f, urgency %d)\n", classification.Category, classification.Confidence, classification.Urgency)

	if merchant != nil {
		fmt.Fprintf(&b, "Merchant context: tier=%s migration_stage=%s health_score=%.2f\n",
			merchant.Tier, merchant.MigrationStage, merchant.HealthScore)
	}

	b.WriteString("\nDocumentation excerpts:\n")
	if len(evidence.Documents) == 0 {
		b.WriteString("- none available\n")
	}
	for _, doc := range evidence.Documents {
		fmt.Fprintf(&b, "- [%s score=%.2f] %s\n", doc.Chunk.ID, doc.Score, singleLine(doc.Chunk.Content))
	}

	b.WriteString("\nRecent log lines:\n")
	if len(evidence.LogLines) == 0 {
		b.WriteString("- none available\n")
	}
	for _, line := range evidence.LogLines {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\nMatched known patterns:\n")
	if len(evidence.Patterns) == 0 {
		b.WriteString("- none matched\n")
	}
	for _, p := range evidence.Patterns {
		fmt.Fprintf(&b, "- %s (historical success rate %.2f): %s\n", p.Signature, p.SuccessRate, p.Solution)
	}

	b.WriteString(`
Formulate exactly 3 ranked hypotheses. Each hypothesis must:
- use a category from [PLATFORM_BUG, MIGRATION_ERROR, CONFIG_ERROR, DOCS_GAP]
- cite the evidence above that supports it
- carry a confidence; the three confidences must sum to 1.0

Output strictly JSON:
{
  "hypotheses": [{"name": "...", "category": "...", "confidence": 0.0, "evidence": ["..."]}],
  "root_cause": "Most likely cause",
  "recommended_action": "..."
}`)

	return b.String()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
