package llm

import (
	"errors"
	"testing"
)

func TestStripFence(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n[1,2]\n```", want: "[1,2]"},
		{name: "surrounding space", input: "  {\"a\":1}  ", want: `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFence(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	var obj struct {
		Code string `json:"product_code"`
	}
	if err := Decode("```json\n{\"product_code\":\"A100\"}\n```", &obj); err != nil {
		t.Fatal(err)
	}
	if obj.Code != "A100" {
		t.Fatalf("code=%q", obj.Code)
	}

	var arr []map[string]any
	if err := Decode("Here you go:\n[{\"product_name\":\"x\"}]", &arr); err != nil {
		t.Fatal(err)
	}
	if len(arr) != 1 {
		t.Fatalf("len=%d", len(arr))
	}
}

func TestDecodeMalformed(t *testing.T) {
	var v map[string]any
	err := Decode("sorry, I cannot help with that", &v)
	if err == nil {
		t.Fatal("expected error")
	}
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError, got %T", err)
	}
	if malformed.Raw == "" {
		t.Fatal("raw text not preserved")
	}

	if err := Decode("null", &v); err == nil {
		t.Fatal("null must be malformed for object targets")
	}
}
