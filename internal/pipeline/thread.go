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

// FallbackMemo is attached when memo generation fails or yields nothing.
const FallbackMemo = "출고 처리"

const memoRuneLimit = 10

const memoSystemPrompt = "You write one short Korean memo line summarizing a shipment request. Respond with the memo text only."

const memoPromptTemplate = `Write a short memo (적요) for this shipment-request thread.

Message: %q
Extracted products: %d

Rules:
1. At most 10 characters.
2. Mention 출고 when the thread is about shipping goods.
3. Use "출고 처리" when nothing stands out.
4. Respond with the memo text only.`

const contextSystemPrompt = "You extract and match requested products from a full Korean message thread. Respond with JSON only."

const contextPromptTemplate = `Extract every requested product from the thread below and match each one
against the catalog. The thread contains an original message followed by
its replies; replies may adjust products or quantities for a stated
reason (e.g. "앰플 재고 부족으로"), and the final answer must reflect the
thread's last stated intent, not the original ask alone.

Thread: %q

Catalog (brand → product code → canonical name):
%s
%s
Respond with one JSON object:
{
  "products": [
    {
      "product_name": "requested name with capacity",
      "quantity": number,
      "unit": "unit",
      "product_code": "matched code",
      "canonical_name": "canonical name from the catalog",
      "brand": "brand name",
      "confidence": 0-100
    }
  ]
}

Rules:
1. Expand "각 제품별 N개" / "각 N개" patterns into one entry per named
   product, each with quantity N:
   "클렌저, 토너, 앰플 - 각 제품별 5개" → 클렌저 5, 토너 5, 앰플 5 (three entries).
2. When a reply corrects a quantity, report only the corrected amount.
3. Capacity mismatches against the catalog get confidence below 50.
4. Use confidence below 50 for anything uncertain; never invent codes.
5. Respond with JSON only, no explanations.`

// ThreadProcessor walks one message thread and produces matched line
// items plus the thread memo.
type ThreadProcessor struct {
	extractor   *Extractor
	matcher     *Matcher
	llm         llm.Completer
	contextMode bool
}

func NewThreadProcessor(extractor *Extractor, matcher *Matcher, completer llm.Completer, contextMode bool) *ThreadProcessor {
	return &ThreadProcessor{extractor: extractor, matcher: matcher, llm: completer, contextMode: contextMode}
}

// Process returns the thread's line items and the memo attached to them.
// A thread whose every call fails simply contributes zero items.
func (p *ThreadProcessor) Process(ctx context.Context, rec internal.ThreadRecord) ([]internal.LineItem, string) {
	fullText := threadText(rec)
	hint := p.matcher.BrandHint(fullText, rec.UserName)

	var items []internal.LineItem
	if p.contextMode {
		items = p.processContext(ctx, rec, fullText, hint)
	} else {
		items = p.processPerText(ctx, rec, hint)
	}

	memo := FallbackMemo
	if len(items) > 0 {
		memo = p.generateMemo(ctx, fullText, len(items))
		for i := range items {
			items[i].Memo = memo
		}
	}
	return items, memo
}

// processPerText runs extraction and matching over the original message
// and then over each reply independently, in arrival order.
func (p *ThreadProcessor) processPerText(ctx context.Context, rec internal.ThreadRecord, hint string) []internal.LineItem {
	items := p.matchText(ctx, rec.Text, hint, internal.SourceChatOriginal, rec.TS)
	for _, reply := range rec.Replies {
		items = append(items, p.matchText(ctx, reply.Text, hint, internal.SourceChatReply, reply.TS)...)
	}
	return items
}

func (p *ThreadProcessor) matchText(ctx context.Context, text, hint string, source internal.SourceKind, ref string) []internal.LineItem {
	var out []internal.LineItem
	for _, candidate := range p.extractor.Extract(ctx, text) {
		match := p.matcher.Match(ctx, candidate.ProductName, hint)
		if match == nil {
			continue
		}
		out = append(out, internal.LineItem{
			RawProductName: candidate.ProductName,
			Quantity:       candidate.Quantity,
			Unit:           candidate.Unit,
			Brand:          match.Brand,
			ProductCode:    match.ProductCode,
			CanonicalName:  match.CanonicalName,
			Confidence:     match.Confidence,
			Source:         source,
			SourceRef:      ref,
		})
	}
	return out
}

// processContext submits the whole thread as one unit so corrections in
// replies and "각 N개" expansion are resolved in context.
func (p *ThreadProcessor) processContext(ctx context.Context, rec internal.ThreadRecord, fullText, hint string) []internal.LineItem {
	if strings.TrimSpace(fullText) == "" {
		return nil
	}

	subset, err := p.matcher.store.MarshalSubset(hint)
	if err != nil {
		log.Printf("catalog marshal failed: %v", err)
		return nil
	}

	brandNote := ""
	if hint != "" {
		brandNote = fmt.Sprintf("\nThe thread names the %q brand: match only inside it.\n", hint)
	}

	content, err := p.llm.Complete(ctx, contextSystemPrompt, fmt.Sprintf(contextPromptTemplate, fullText, subset, brandNote))
	if err != nil {
		log.Printf("context match failed thread=%s: %v", rec.TS, err)
		return nil
	}

	var raw struct {
		Products []map[string]any `json:"products"`
	}
	if err := llm.Decode(content, &raw); err != nil {
		log.Printf("context response rejected thread=%s: %v", rec.TS, err)
		return nil
	}

	var out []internal.LineItem
	for _, item := range raw.Products {
		name, _ := item["product_name"].(string)
		code, _ := item["product_code"].(string)
		qty, qtyOK := util.ToFloat(item["quantity"])
		if strings.TrimSpace(name) == "" || strings.TrimSpace(code) == "" || !qtyOK || qty <= 0 {
			continue
		}
		confidence, ok := util.ToFloat(item["confidence"])
		if !ok {
			confidence = 0
		}
		if confidence < internal.MinConfidence {
			continue
		}
		if confidence > 100 {
			confidence = 100
		}

		brand, _ := item["brand"].(string)
		brand = strings.TrimSpace(brand)
		if brand == "" {
			brand = hint
		}
		canonical, _ := item["canonical_name"].(string)
		unit, _ := item["unit"].(string)

		out = append(out, internal.LineItem{
			RawProductName: strings.TrimSpace(name),
			Quantity:       qty,
			Unit:           strings.TrimSpace(unit),
			Brand:          brand,
			ProductCode:    strings.TrimSpace(code),
			CanonicalName:  strings.TrimSpace(canonical),
			Confidence:     confidence,
			Source:         internal.SourceChatOriginal,
			SourceRef:      rec.TS,
		})
	}
	return out
}

func (p *ThreadProcessor) generateMemo(ctx context.Context, fullText string, itemCount int) string {
	if strings.TrimSpace(fullText) == "" {
		return FallbackMemo
	}

	prompt := fmt.Sprintf(memoPromptTemplate, util.TruncateRunes(fullText, 200), itemCount)
	content, err := p.llm.Complete(ctx, memoSystemPrompt, prompt)
	if err != nil {
		log.Printf("memo generation failed: %v", err)
		return FallbackMemo
	}

	memo := util.TruncateRunes(strings.TrimSpace(content), memoRuneLimit)
	if memo == "" {
		return FallbackMemo
	}
	return memo
}

func threadText(rec internal.ThreadRecord) string {
	parts := make([]string, 0, 1+len(rec.Replies))
	if strings.TrimSpace(rec.Text) != "" {
		parts = append(parts, strings.TrimSpace(rec.Text))
	}
	for _, reply := range rec.Replies {
		if strings.TrimSpace(reply.Text) != "" {
			parts = append(parts, strings.TrimSpace(reply.Text))
		}
	}
	return strings.Join(parts, "\n")
}
