package domain

// Category enumerates the technical categories a ticket can be classified into.
type Category string

const (
	CategoryAPIError      Category = "API_ERROR"
	CategoryConfigError   Category = "CONFIG_ERROR"
	CategoryWebhookFail   Category = "WEBHOOK_FAIL"
	CategoryCheckoutBreak Category = "CHECKOUT_BREAK"
	CategoryDocsConfusion Category = "DOCS_CONFUSION"
)

// Categories lists every valid classification category.
func Categories() []Category {
	return []Category{
		CategoryAPIError,
		CategoryConfigError,
		CategoryWebhookFail,
		CategoryCheckoutBreak,
		CategoryDocsConfusion,
	}
}

// IsValid reports whether c is a member of the fixed category set.
func (c Category) IsValid() bool {
	for _, candidate := range Categories() {
		if c == candidate {
			return true
		}
	}
	return false
}

// IsTechnical reports whether the category implies a technical break that
// warrants a diagnosis rather than remediation guidance.
func (c Category) IsTechnical() bool {
	switch c {
	case CategoryAPIError, CategoryWebhookFail, CategoryCheckoutBreak, CategoryConfigError:
		return true
	}
	return false
}

// Classification is the result of classifying a ticket's raw text.
// A Confidence of exactly 0.0 signals that classification did not actually
// occur; consumers must treat it as "unclassified", not "extremely unlikely".
type Classification struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Urgency    int      `json:"urgency"`
	Reasoning  string   `json:"reasoning"`
}
