package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func testCatalog() Catalog {
	return Catalog{
		"바루랩": {
			"B100": "바루랩 수분 크림 50ml",
			"B101": "바루랩 클렌징 폼 150ml",
		},
		"탐뷰티": {
			"T200": "탐뷰티 더 클라우드 컨실러",
		},
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	blob := `{"BrandX": {"100": "Widget A"}}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if data["BrandX"]["100"] != "Widget A" {
		t.Fatalf("unexpected catalog: %+v", data)
	}
}

func TestLoadMissingFileYieldsEmptyCatalog(t *testing.T) {
	data, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	store := NewStore(data)
	if !store.Empty() {
		t.Fatal("store must be empty after failed load")
	}
	if _, ok := store.FindExact("anything", ""); ok {
		t.Fatal("empty store must not match")
	}
}

func TestFindExact(t *testing.T) {
	store := NewStore(testCatalog())

	cases := []struct {
		name     string
		query    string
		brand    string
		wantCode string
		ok       bool
	}{
		{name: "verbatim", query: "바루랩 수분 크림 50ml", wantCode: "B100", ok: true},
		{name: "case insensitive", query: "바루랩 수분 크림 50ML", wantCode: "B100", ok: true},
		{name: "whitespace trimmed", query: "  탐뷰티 더 클라우드 컨실러  ", wantCode: "T200", ok: true},
		{name: "inner space collapsed", query: "바루랩  수분  크림 50ml", wantCode: "B100", ok: true},
		{name: "brand scoped hit", query: "탐뷰티 더 클라우드 컨실러", brand: "탐뷰티", wantCode: "T200", ok: true},
		{name: "brand scoped miss", query: "바루랩 수분 크림 50ml", brand: "탐뷰티", ok: false},
		{name: "unknown name", query: "없는 제품", ok: false},
		{name: "blank", query: "   ", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry, ok := store.FindExact(tc.query, tc.brand)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && entry.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", entry.Code, tc.wantCode)
			}
		})
	}
}

func TestSubset(t *testing.T) {
	store := NewStore(testCatalog())

	sub := store.Subset("탐뷰티")
	if len(sub) != 1 || len(sub["탐뷰티"]) != 1 {
		t.Fatalf("unexpected subset: %+v", sub)
	}

	all := store.Subset("없는브랜드")
	if len(all) != 2 {
		t.Fatalf("unknown brand must fall back to the full catalog, got %d brands", len(all))
	}

	if store.ProductCount() != 3 {
		t.Fatalf("count=%d", store.ProductCount())
	}
}
