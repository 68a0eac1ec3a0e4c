package provider

import (
	"regexp"
	"testing"
)

func TestVisibleText_SkipsScriptAndStyle(t *testing.T) {
	html := `<html><head>
		<style>.rating { color: red; }</style>
		<script>var solved = 99999;</script>
	</head><body>
		<h1>tourist</h1>
		<div>Fully Solved: 42</div>
	</body></html>`

	got := visibleText([]byte(html))

	if got != "tourist Fully Solved: 42" {
		t.Errorf("visibleText = %q, want %q", got, "tourist Fully Solved: 42")
	}
}

func TestVisibleText_CollapsesWhitespace(t *testing.T) {
	html := "<p>rating:\n\t  1234</p>\n<p>solved</p>"

	got := visibleText([]byte(html))

	if got != "rating: 1234 solved" {
		t.Errorf("visibleText = %q, want %q", got, "rating: 1234 solved")
	}
}

func TestFirstMatchedCount_PicksFirstPatternInOrder(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)solved[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)(\d+)\s*problems?\s*solved`),
	}

	n, ok := firstMatchedCount("Fully Solved: 42 and also 7 problems solved", patterns, 0, 10000)
	if !ok {
		t.Fatal("firstMatchedCount は一致を返すべき")
	}
	if n != 42 {
		t.Errorf("n = %d, want 42（先頭パターンが優先されるべき）", n)
	}
}

func TestFirstMatchedCount_RejectsOutOfRange(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)solved[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)(\d+)\s*problems?\s*solved`),
	}

	// 先頭パターンの数値が妥当域外の場合は不採用とし、後続パターンを試す
	n, ok := firstMatchedCount("Solved: 123456 / 42 problems solved", patterns, 0, 10000)
	if !ok {
		t.Fatal("firstMatchedCount は後続パターンで一致を返すべき")
	}
	if n != 42 {
		t.Errorf("n = %d, want 42", n)
	}
}

func TestFirstMatchedCount_NoMatch(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)solved[:\s]*(\d+)`),
	}

	if n, ok := firstMatchedCount("no numbers here", patterns, 0, 10000); ok {
		t.Errorf("一致がない場合は ok=false が返るべき: n=%d", n)
	}
}

func TestFirstMatchedCount_ZeroIsOutOfRange(t *testing.T) {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)solved[:\s]*(\d+)`),
	}

	// 妥当域は両端排他なので 0 は不採用
	if n, ok := firstMatchedCount("Solved: 0", patterns, 0, 10000); ok {
		t.Errorf("0 は妥当域外として不採用になるべき: n=%d", n)
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1234?", 1234},
		{" 1847 ", 1847},
		{"no digits", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := digitsOnly(tt.input); got != tt.want {
			t.Errorf("digitsOnly(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestFirstNumber(t *testing.T) {
	n, ok := firstNumber("Problems Solved (312)")
	if !ok || n != 312 {
		t.Errorf("firstNumber = (%d, %v), want (312, true)", n, ok)
	}

	if _, ok := firstNumber("Problems Solved"); ok {
		t.Error("数字がない場合は ok=false が返るべき")
	}
}
