package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		version int
		entity  string
		want    string
	}{
		{name: "v1 specials", text: "a_b*c`d[e]", version: MarkdownV1, want: "a\\_b\\*c\\`d\\[e]"},
		{name: "v1 plain", text: "Café & Co.", version: MarkdownV1, want: "Café & Co."},
		{name: "v2 specials", text: "9.99 (new)!", version: MarkdownV2, want: "9\\.99 \\(new\\)\\!"},
		{name: "v2 backslash", text: `a\b`, version: MarkdownV2, want: `a\\b`},
		{name: "v2 code", text: "x.`y`", version: MarkdownV2, entity: "code", want: "x.\\`y\\`"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EscapeMarkdown(tc.text, tc.version, tc.entity)
			if err != nil {
				t.Fatalf("escape: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
	if _, err := EscapeMarkdown("x", 3, ""); err == nil {
		t.Fatal("expected error for unknown version")
	}
}
