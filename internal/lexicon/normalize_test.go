package lexicon

import (
	"testing"
	"testing/quick"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"kikai", "kikai"},
		{"  KiKai  ", "kikai"},
		{"ti sun", "tisun"},
		{"a·b、c，d,e；f;g．h.i", "abcdefghi"},
		{"tja\tqu\r\nvu", "tjaquvu"},
		{".　a", "a"},
		{"ljavek!", "ljavek!"},
		{"ng-ng", "ng-ng"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	f := func(s string) bool {
		once := Normalize(s)
		return Normalize(once) == once
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 2000}); err != nil {
		t.Error(err)
	}

	for _, s := range []string{"İstanbul", ".  Ka", "ẞ", "ǅemal"} {
		if !f(s) {
			t.Errorf("Normalize not idempotent for %q", s)
		}
	}
}
