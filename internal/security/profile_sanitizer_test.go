package security

import "testing"

func TestProfileSanitizer_Plain(t *testing.T) {
	s := NewProfileSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "Hello STATLY-A1B2C3",
			want:  "Hello STATLY-A1B2C3",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
		{
			name:  "タグを除去する",
			input: "<b>tourist</b> <script>alert(1)</script>",
			want:  "tourist",
		},
		{
			name:  "実体参照をデコードする",
			input: "Fish &amp; Chips",
			want:  "Fish & Chips",
		},
		{
			name:  "連続空白と改行を1スペースに圧縮する",
			input: "rating:\n\t  1234   solved",
			want:  "rating: 1234 solved",
		},
		{
			name:  "検証コードがタグに分断されていても残る",
			input: "<span>A1B2</span><span>C3</span>",
			want:  "A1B2C3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Plain(tt.input)
			if got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestProfileSanitizer_Plain_Idempotent(t *testing.T) {
	s := NewProfileSanitizer()

	input := "<p>Competitive programmer &amp; OSS contributor</p>"
	once := s.Plain(input)
	twice := s.Plain(once)

	if once != twice {
		t.Errorf("サニタイズは冪等であるべき: once=%q twice=%q", once, twice)
	}
}
