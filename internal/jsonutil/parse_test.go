package jsonutil

import (
	"errors"
	"reflect"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"too short", "```{}```", "```{}```"},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("StripMarkdownFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	fields, err := DecodeObject("```json\n{\"location\":\"Kitchen\",\"n\":null}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(fields["location"]) != `"Kitchen"` {
		t.Errorf("location = %s", fields["location"])
	}

	if _, err := DecodeObject("   "); !errors.Is(err, ErrEmpty) {
		t.Errorf("blank input: expected ErrEmpty, got %v", err)
	}
	for _, bad := range []string{"not json", "[1,2,3]", "null", `{"a":`, `Here: {"a":1}`} {
		if _, err := DecodeObject(bad); err == nil {
			t.Errorf("DecodeObject(%q) should fail", bad)
		}
	}
}

func TestMissingFields(t *testing.T) {
	fields, err := DecodeObject(`{"a":1,"b":null,"d":false}`)
	if err != nil {
		t.Fatal(err)
	}
	got := MissingFields(fields, "a", "b", "c", "d")
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingFields() = %v, want %v", got, want)
	}
}
