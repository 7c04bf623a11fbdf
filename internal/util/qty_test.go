package util

import "testing"

func TestToFloat(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{name: "float", input: 12.0, want: 12, ok: true},
		{name: "int", input: 7, want: 7, ok: true},
		{name: "numeric string", input: "85", want: 85, ok: true},
		{name: "decimal string", input: " 1.5 ", want: 1.5, ok: true},
		{name: "garbage string", input: "ten", ok: false},
		{name: "empty string", input: "", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "bool", input: true, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToFloat(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestCoerceQuantity(t *testing.T) {
	if n, ok := CoerceQuantity(3.9); !ok || n != 3 {
		t.Fatalf("got %d ok=%v", n, ok)
	}
	if _, ok := CoerceQuantity(0); ok {
		t.Fatal("zero must not contribute")
	}
	if _, ok := CoerceQuantity(-5); ok {
		t.Fatal("negative must not contribute")
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Widget   A "); got != "widget a" {
		t.Fatalf("got %q", got)
	}
	if NormalizeName("바루랩 수분크림") != NormalizeName("바루랩  수분크림") {
		t.Fatal("space collapse mismatch")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("출고 처리 완료입니다", 5); got != "출고 처리" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("출고", 10); got != "출고" {
		t.Fatalf("got %q", got)
	}
}
