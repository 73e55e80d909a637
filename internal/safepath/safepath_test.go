package safepath

import (
	"errors"
	"strings"
	"testing"
)

func TestWithin(t *testing.T) {
	tests := []struct {
		name    string
		member  string
		want    string
		wantErr error
	}{
		{"simple file", "manifest.json", "manifest.json", nil},
		{"nested file", "blobs/blake3/ab/abcd", "blobs/blake3/ab/abcd", nil},
		{"dot segments collapse", "blobs/./x", "blobs/x", nil},
		{"internal dotdot collapses", "blobs/../manifest.json", "manifest.json", nil},
		{"empty", "", "", ErrEmptyPath},
		{"parent escape", "../outside", "", ErrTraversal},
		{"deep escape", "blobs/../../outside", "", ErrTraversal},
		{"absolute", "/etc/passwd", "", ErrTraversal},
		{"too long", strings.Repeat("a", MaxPathLength+1), "", ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Within("/tmp/dest", tt.member)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Within(%q) error = %v, want %v", tt.member, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Within(%q) error = %v", tt.member, err)
			}
			if got != tt.want {
				t.Errorf("Within(%q) = %q, want %q", tt.member, got, tt.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	if !IsWithin("/tmp/dest", "blobs/x") {
		t.Error("IsWithin should accept a contained path")
	}
	if IsWithin("/tmp/dest", "../x") {
		t.Error("IsWithin should reject an escaping path")
	}
}

func TestCheckName(t *testing.T) {
	valid := []string{"melody.musicxml", "run-1.mid", "score_2.xml"}
	for _, name := range valid {
		if err := CheckName(name); err != nil {
			t.Errorf("CheckName(%q) error = %v", name, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", "a\\b", "a\x00b", "a\nb",
		strings.Repeat("x", MaxNameLength+1)}
	for _, name := range invalid {
		if err := CheckName(name); err == nil {
			t.Errorf("CheckName(%q) should fail", name)
		}
	}
}
