package richdoc

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		want  string
	}{
		{
			name: "paragraph with hard break",
			nodes: []Node{{Type: "paragraph", Content: []Node{
				{Type: "text", Text: "a"},
				{Type: "hardBreak"},
				{Type: "text", Text: "b"},
			}}},
			want: "a\nb",
		},
		{
			name:  "nil nodes",
			nodes: nil,
			want:  "",
		},
		{
			name: "marks are ignored",
			nodes: []Node{{Type: "paragraph", Content: []Node{
				{Type: "text", Text: "styled", Marks: []Mark{{Type: "bold"}, {Type: "link", Attrs: map[string]any{"href": "https://e.com"}}}},
			}}},
			want: "styled",
		},
		{
			name: "unknown containers still traversed",
			nodes: []Node{{Type: "callout", Content: []Node{
				{Type: "mystery", Content: []Node{{Type: "text", Text: "deep"}}},
			}}},
			want: "deep",
		},
		{
			name: "non-text leaves contribute nothing",
			nodes: []Node{
				{Type: "horizontalRule"},
				{Type: "image", Attrs: map[string]any{"id": float64(1), "storage_key": "a.jpg", "alt": "pic"}},
				{Type: "paragraph", Content: []Node{{Type: "text", Text: "only this"}}},
			},
			want: "only this",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.nodes); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTextDepthBound(t *testing.T) {
	inner := Node{Type: "text", Text: "bottom"}
	for i := 0; i < maxDepth+50; i++ {
		inner = Node{Type: "blockquote", Content: []Node{inner}}
	}
	// A pathologically deep document must not panic; text past the bound is dropped.
	if got := ExtractText([]Node{inner}); got != "" {
		t.Errorf("expected truncation past depth bound, got %q", got)
	}
}
