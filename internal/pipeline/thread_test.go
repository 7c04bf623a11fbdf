package pipeline

import (
	"context"
	"testing"

	"outbound/internal"
	"outbound/internal/catalog"
)

func newProcessor(t *testing.T, fake *fakeCompleter, contextMode bool) *ThreadProcessor {
	t.Helper()
	store := catalog.NewStore(catalog.Catalog{
		"바루랩": {
			"B100": "바루랩 수분 크림 50ml",
			"B101": "바루랩 앰플 30ml",
			"B102": "바루랩 클렌저 150ml",
			"B103": "바루랩 토너 200ml",
		},
	})
	matcher := NewMatcher(store, fake, nil)
	return NewThreadProcessor(NewExtractor(fake), matcher, fake, contextMode)
}

func TestProcessPerText(t *testing.T) {
	// Queue: extract original, extract reply, memo. Both names hit the
	// catalog exactly, so no approximate calls happen in between.
	fake := &fakeCompleter{t: t, responses: []string{
		`[{"product_name":"바루랩 수분 크림 50ml","quantity":10,"unit":"개"}]`,
		`[{"product_name":"바루랩 앰플 30ml","quantity":3,"unit":"개"}]`,
		"바루랩 출고",
	}}
	p := newProcessor(t, fake, false)

	rec := internal.ThreadRecord{
		TS:   "1001.0001",
		Text: "바루랩 수분 크림 50ml 10개 출고 부탁드립니다",
		Replies: []internal.Reply{
			{TS: "1001.0002", Text: "앰플 30ml 3개도 추가요"},
		},
	}

	items, memo := p.Process(context.Background(), rec)
	if len(items) != 2 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}
	if items[0].Source != internal.SourceChatOriginal || items[0].SourceRef != "1001.0001" {
		t.Fatalf("original item: %+v", items[0])
	}
	if items[1].Source != internal.SourceChatReply || items[1].SourceRef != "1001.0002" {
		t.Fatalf("reply item: %+v", items[1])
	}
	if memo != "바루랩 출고" {
		t.Fatalf("memo=%q", memo)
	}
	for i, item := range items {
		if item.Memo != memo {
			t.Fatalf("item %d memo=%q", i, item.Memo)
		}
		if item.Confidence != 100 {
			t.Fatalf("item %d confidence=%v", i, item.Confidence)
		}
	}
	if fake.calls != 3 {
		t.Fatalf("calls=%d", fake.calls)
	}
}

func TestProcessMemoFallback(t *testing.T) {
	fake := &fakeCompleter{
		t:            t,
		responses:    []string{`[{"product_name":"바루랩 수분 크림 50ml","quantity":2}]`},
		errWhenEmpty: context.DeadlineExceeded,
	}
	p := newProcessor(t, fake, false)

	items, memo := p.Process(context.Background(), internal.ThreadRecord{
		TS:   "1002.0001",
		Text: "수분 크림 2개",
	})
	if len(items) != 1 {
		t.Fatalf("items: %+v", items)
	}
	if memo != FallbackMemo {
		t.Fatalf("memo=%q", memo)
	}
}

func TestProcessMemoTruncatedToTenRunes(t *testing.T) {
	fake := &fakeCompleter{t: t, responses: []string{
		`[{"product_name":"바루랩 수분 크림 50ml","quantity":1}]`,
		"바루랩 수분 크림 출고 처리 완료",
	}}
	p := newProcessor(t, fake, false)

	_, memo := p.Process(context.Background(), internal.ThreadRecord{
		TS:   "1003.0001",
		Text: "수분 크림 1개",
	})
	if got := len([]rune(memo)); got > 10 {
		t.Fatalf("memo %q has %d runes", memo, got)
	}
}

func TestProcessEmptyThreadMakesNoCalls(t *testing.T) {
	for _, contextMode := range []bool{false, true} {
		fake := &fakeCompleter{t: t}
		p := newProcessor(t, fake, contextMode)

		items, memo := p.Process(context.Background(), internal.ThreadRecord{TS: "1004.0001", Text: "   "})
		if len(items) != 0 || memo != FallbackMemo {
			t.Fatalf("contextMode=%v items=%+v memo=%q", contextMode, items, memo)
		}
		if fake.calls != 0 {
			t.Fatalf("contextMode=%v calls=%d", contextMode, fake.calls)
		}
	}
}

func TestProcessContextExpandsPerProductQuantity(t *testing.T) {
	// "각 제품별 3개" over three products comes back as three entries,
	// each carrying quantity 3.
	fake := &fakeCompleter{t: t, responses: []string{
		`{"products":[
			{"product_name":"클렌저","quantity":3,"product_code":"B102","canonical_name":"바루랩 클렌저 150ml","brand":"바루랩","confidence":90},
			{"product_name":"토너","quantity":3,"product_code":"B103","canonical_name":"바루랩 토너 200ml","brand":"바루랩","confidence":90},
			{"product_name":"앰플","quantity":3,"product_code":"B101","canonical_name":"바루랩 앰플 30ml","brand":"바루랩","confidence":90}
		]}`,
		"출고 처리",
	}}
	p := newProcessor(t, fake, true)

	rec := internal.ThreadRecord{
		TS:   "1005.0001",
		Text: "클렌저, 토너, 앰플 - 각 제품별 3개 출고 부탁드립니다",
	}
	items, _ := p.Process(context.Background(), rec)
	if len(items) != 3 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}
	for i, item := range items {
		if item.Quantity != 3 {
			t.Fatalf("item %d quantity=%v", i, item.Quantity)
		}
		if item.Source != internal.SourceChatOriginal || item.SourceRef != "1005.0001" {
			t.Fatalf("item %d source=%s ref=%s", i, item.Source, item.SourceRef)
		}
	}
}

func TestProcessContextReplyCorrection(t *testing.T) {
	// The original asks for 100, a reply corrects to 50; the context call
	// reports only the corrected amount and exactly one item survives.
	fake := &fakeCompleter{t: t, responses: []string{
		`{"products":[{"product_name":"바루랩 앰플 30ml","quantity":50,"product_code":"B101","canonical_name":"바루랩 앰플 30ml","brand":"바루랩","confidence":95}]}`,
		"앰플 출고",
	}}
	p := newProcessor(t, fake, true)

	rec := internal.ThreadRecord{
		TS:   "1006.0001",
		Text: "바루랩 앰플 30ml 100개 출고 요청드립니다",
		Replies: []internal.Reply{
			{TS: "1006.0002", Text: "재고 부족으로 50개만 나갑니다"},
		},
	}
	items, _ := p.Process(context.Background(), rec)
	if len(items) != 1 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}
	if items[0].Quantity != 50 {
		t.Fatalf("quantity=%v", items[0].Quantity)
	}
}

func TestProcessContextFiltersWeakEntries(t *testing.T) {
	fake := &fakeCompleter{t: t, responses: []string{
		`{"products":[
			{"product_name":"수분 크림","quantity":5,"product_code":"B100","canonical_name":"바루랩 수분 크림 50ml","brand":"바루랩","confidence":85},
			{"product_name":"정체불명 제품","quantity":2,"product_code":"B999","canonical_name":"","brand":"바루랩","confidence":30},
			{"product_name":"코드 없는 제품","quantity":2,"product_code":"","canonical_name":"","brand":"바루랩","confidence":90},
			{"product_name":"수량 없는 제품","quantity":0,"product_code":"B101","canonical_name":"바루랩 앰플 30ml","brand":"바루랩","confidence":90}
		]}`,
		"출고 처리",
	}}
	p := newProcessor(t, fake, true)

	items, _ := p.Process(context.Background(), internal.ThreadRecord{TS: "1007.0001", Text: "출고 요청"})
	if len(items) != 1 || items[0].ProductCode != "B100" {
		t.Fatalf("items: %+v", items)
	}
}
