package linechunk

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "hello world\n", []string{"hello", "world"}},
		{"runs of spaces", "a   b \t c", []string{"a", "b", "c"}},
		{"leading and trailing", "  \tpadded\t  \r\n", []string{"padded"}},
		{"unicode", "日本語 テキスト　全角", []string{"日本語", "テキスト", "全角"}},
		{"no-break space", "a b", []string{"a", "b"}},
		{"separators", "a\x1fb\x1cc", []string{"a", "b", "c"}},
		{"punctuation kept", "Hello, world!", []string{"Hello,", "world!"}},
		{"blank", "   \n", []string{}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.line)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %q, want %q", tt.line, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.line, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestTokenizeNoEmptyTokens verifies that collapsing whitespace never
// produces empty tokens, which would otherwise become empty vocabulary
// entries downstream.
func TestTokenizeNoEmptyTokens(t *testing.T) {
	line := strings.Repeat(" x \t\n", 50)
	for _, tok := range Tokenize(line) {
		if tok == "" {
			t.Fatal("empty token")
		}
	}
}
