package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"outbound/internal"
	"outbound/internal/catalog"
	"outbound/internal/llm"
	"outbound/internal/util"
)

const matchSystemPrompt = "You match product names against a catalog. Prefer exact matches and never invent codes. Respond with JSON only."

const matchPromptTemplate = `Find the catalog product closest to the requested name.

Requested name: %q

Catalog (brand → product code → canonical name):
%s

Respond with one JSON object:
{
  "product_code": "matched code",
  "canonical_name": "matched canonical name",
  "brand": "brand name",
  "confidence": 0-100
}

Rules:
1. Pick an exactly matching product when one exists.
2. Otherwise pick the most similar product.
3. When confidence would be below 50, respond with null.
4. Respond with JSON only, no explanations.`

// Matcher resolves extracted names against the brand-scoped catalog:
// a deterministic exact pass first, then a model-backed approximate pass
// over the (optionally brand-filtered) catalog.
type Matcher struct {
	store       *catalog.Store
	llm         llm.Completer
	ownerBrands map[string]string
}

func NewMatcher(store *catalog.Store, completer llm.Completer, ownerBrands map[string]string) *Matcher {
	if ownerBrands == nil {
		ownerBrands = map[string]string{}
	}
	return &Matcher{store: store, llm: completer, ownerBrands: ownerBrands}
}

// Match returns nil when the name resolves to nothing reliable. The exact
// pass is authoritative and always runs before the approximate pass.
func (m *Matcher) Match(ctx context.Context, productName, brandHint string) *internal.MatchResult {
	name := strings.TrimSpace(productName)
	if name == "" || m.store.Empty() {
		return nil
	}

	if entry, ok := m.store.FindExact(name, brandHint); ok {
		return &internal.MatchResult{
			Brand:         entry.Brand,
			ProductCode:   entry.Code,
			CanonicalName: entry.Name,
			Confidence:    100,
		}
	}

	return m.matchApproximate(ctx, name, brandHint)
}

func (m *Matcher) matchApproximate(ctx context.Context, name, brandHint string) *internal.MatchResult {
	subset, err := m.store.MarshalSubset(brandHint)
	if err != nil {
		log.Printf("catalog marshal failed: %v", err)
		return nil
	}

	content, err := m.llm.Complete(ctx, matchSystemPrompt, fmt.Sprintf(matchPromptTemplate, name, subset))
	if err != nil {
		log.Printf("match call failed name=%q: %v", name, err)
		return nil
	}

	var raw map[string]any
	if err := llm.Decode(content, &raw); err != nil {
		log.Printf("match response rejected name=%q: %v", name, err)
		return nil
	}

	code, _ := raw["product_code"].(string)
	if strings.TrimSpace(code) == "" {
		return nil
	}

	// String confidences are coerced; anything else counts as zero.
	confidence, ok := util.ToFloat(raw["confidence"])
	if !ok {
		confidence = 0
	}
	if confidence < internal.MinConfidence {
		return nil
	}
	if confidence > 100 {
		confidence = 100
	}

	brand, _ := raw["brand"].(string)
	brand = strings.TrimSpace(brand)
	if brand == "" {
		brand = brandHint
	}
	canonical, _ := raw["canonical_name"].(string)

	return &internal.MatchResult{
		Brand:         brand,
		ProductCode:   strings.TrimSpace(code),
		CanonicalName: strings.TrimSpace(canonical),
		Confidence:    confidence,
	}
}

// BrandHint derives a brand scope for a thread. A literal brand mention in
// the text always wins; the responsible-person table is consulted only
// when the text names no brand.
func (m *Matcher) BrandHint(text, userName string) string {
	compact := util.CompactName(text)
	for _, brand := range m.store.Brands() {
		if strings.Contains(compact, util.CompactName(brand)) {
			return brand
		}
	}
	if brand, ok := m.ownerBrands[strings.TrimSpace(userName)]; ok {
		return brand
	}
	return ""
}
