package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"outbound/internal"
	"outbound/internal/llm"
	"outbound/internal/util"
)

const extractSystemPrompt = "You extract product names and quantities from Korean shipment-request messages. Respond with JSON only."

const extractPromptTemplate = `Extract every requested product and its quantity from the text below.

Text: %q

Respond with a JSON array:
[
  {
    "product_name": "full product name",
    "quantity": number,
    "unit": "unit such as 개, 세트, 박스, ea"
  }
]

Rules:
1. Keep the product name exact and complete, including capacity (e.g. 30ml, 150g).
2. Quantity is a bare number: "10개" becomes 10.
3. Return [] when the text requests no products.
4. Respond with JSON only, no explanations.`

// Extractor turns one free-text message into product candidates.
type Extractor struct {
	llm llm.Completer
}

func NewExtractor(completer llm.Completer) *Extractor {
	return &Extractor{llm: completer}
}

// Extract returns zero or more candidates for a text. Blank text short
// circuits without an external call; any transport or parse failure
// degrades to an empty result.
func (e *Extractor) Extract(ctx context.Context, text string) []internal.ExtractedCandidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	content, err := e.llm.Complete(ctx, extractSystemPrompt, fmt.Sprintf(extractPromptTemplate, text))
	if err != nil {
		log.Printf("extract call failed: %v", err)
		return nil
	}

	var raw []map[string]any
	if err := llm.Decode(content, &raw); err != nil {
		log.Printf("extract response rejected: %v", err)
		return nil
	}

	out := make([]internal.ExtractedCandidate, 0, len(raw))
	for _, item := range raw {
		name, _ := item["product_name"].(string)
		name = strings.TrimSpace(name)
		qty, ok := util.ToFloat(item["quantity"])
		if name == "" || !ok || qty <= 0 {
			// Malformed entries are dropped one by one, never fatally.
			continue
		}
		unit, _ := item["unit"].(string)
		out = append(out, internal.ExtractedCandidate{
			ProductName: name,
			Quantity:    qty,
			Unit:        strings.TrimSpace(unit),
			RawText:     util.TruncateRunes(text, 100),
		})
	}
	return out
}
