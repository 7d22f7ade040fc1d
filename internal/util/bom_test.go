package util

import (
	"io"
	"strings"
	"testing"
)

func TestStripBOM(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"with bom", "\xEF\xBB\xBFtitle,count", "title,count"},
		{"without bom", "title,count", "title,count"},
		{"short input", "ab", "ab"},
		{"empty", "", ""},
		{"bom only", "\xEF\xBB\xBF", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := io.ReadAll(StripBOM(strings.NewReader(tc.input)))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(out) != tc.want {
				t.Errorf("got %q, want %q", out, tc.want)
			}
		})
	}
}
