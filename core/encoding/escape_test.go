package encoding

import "testing"

func TestEscapeXMLText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"Dvořák & Smetana", "Dvořák &amp; Smetana"},
		{"a<b>c", "a&lt;b&gt;c"},
		{`say "hi"`, `say "hi"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EscapeXMLText(tt.in); got != tt.want {
			t.Errorf("EscapeXMLText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeXMLAttr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"P1", "P1"},
		{`a"b`, "a&quot;b"},
		{"a<b", "a&lt;b"},
		{"line\nbreak", "line&#10;break"},
		{"tab\there", "tab&#9;here"},
	}
	for _, tt := range tests {
		if got := EscapeXMLAttr(tt.in); got != tt.want {
			t.Errorf("EscapeXMLAttr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
