package ops

import (
	"strings"
	"testing"
)

func TestRenderAnswer(t *testing.T) {
	tests := []struct {
		name     string
		md       string
		contains string
		absent   string
	}{
		{"emphasis", "**bold** and _it_", "<strong>bold</strong>", ""},
		{"list", "- a\n- b", "<li>a</li>", ""},
		{"code", "`x := 1`", "<code>x := 1</code>", ""},
		{"raw html dropped", "hi <script>alert(1)</script>", "hi", "<script>"},
		{"javascript link", "[x](javascript:alert(1))", "x", "javascript:"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RenderAnswer(tc.md)
			if !strings.Contains(got, tc.contains) {
				t.Errorf("RenderAnswer(%q) = %q, want it to contain %q", tc.md, got, tc.contains)
			}
			if tc.absent != "" && strings.Contains(got, tc.absent) {
				t.Errorf("RenderAnswer(%q) = %q, must not contain %q", tc.md, got, tc.absent)
			}
		})
	}
}
