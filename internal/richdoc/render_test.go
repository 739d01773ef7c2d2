package richdoc

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func testRenderer() *Renderer {
	return NewRenderer("https://img.example.com")
}

func paragraph(text string) Node {
	return Node{Type: "paragraph", Content: []Node{{Type: "text", Text: text}}}
}

func docOf(nodes ...Node) *Document {
	return &Document{Type: "doc", Content: nodes}
}

func TestRenderEscapesAuthorTextInBothModes(t *testing.T) {
	doc := docOf(paragraph(`Fish & <Chips> "quoted" 'single'`))
	r := testRenderer()

	for _, mode := range []Mode{ModePage, ModeFeed} {
		out := r.Render(doc, mode)
		if !strings.Contains(out, `Fish &amp; &lt;Chips&gt; &#34;quoted&#34; &#39;single&#39;`) {
			t.Errorf("mode %s: expected escaped entities, got %q", mode, out)
		}
		if strings.Contains(out, "<Chips>") {
			t.Errorf("mode %s: raw markup leaked into output: %q", mode, out)
		}
	}
}

func TestRenderMissingOrMalformedDocument(t *testing.T) {
	r := testRenderer()

	if out := r.Render(nil, ModePage); out != PlaceholderHTML {
		t.Errorf("nil document: expected placeholder, got %q", out)
	}
	if out := r.Render(&Document{}, ModePage); out != PlaceholderHTML {
		t.Errorf("document without content: expected placeholder, got %q", out)
	}

	rawCases := []string{"null", "{}", `{"content":"not-an-array"}`, `not json at all`}
	for _, raw := range rawCases {
		for _, mode := range []Mode{ModePage, ModeFeed} {
			if out := r.RenderRaw([]byte(raw), mode); out != PlaceholderHTML {
				t.Errorf("RenderRaw(%q, %s): expected placeholder, got %q", raw, mode, out)
			}
		}
	}

	// An empty content array is not missing content: it renders an empty container, not the placeholder.
	if out := r.Render(&Document{Content: []Node{}}, ModePage); out != `<div class="doc-body"></div>` {
		t.Errorf("empty content: expected empty container, got %q", out)
	}
}

func TestRenderHeadingLevels(t *testing.T) {
	r := testRenderer()
	tests := []struct {
		name  string
		attrs map[string]any
		tag   string
	}{
		{"absent level defaults to 2", nil, "h2"},
		{"level 0 defaults to 2", map[string]any{"level": float64(0)}, "h2"},
		{"negative level defaults to 2", map[string]any{"level": float64(-3)}, "h2"},
		{"level 99 clamps to 6", map[string]any{"level": float64(99)}, "h6"},
		{"level 3 stays 3", map[string]any{"level": float64(3)}, "h3"},
		{"level 3.6 rounds to 4", map[string]any{"level": 3.6}, "h4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docOf(Node{Type: "heading", Attrs: tt.attrs, Content: []Node{{Type: "text", Text: "title"}}})
			out := r.Render(doc, ModePage)
			if !strings.Contains(out, "<"+tt.tag+" ") && !strings.Contains(out, "<"+tt.tag+">") {
				t.Errorf("expected %s element, got %q", tt.tag, out)
			}
		})
	}
}

func TestRenderHeadingIDIsEscaped(t *testing.T) {
	doc := docOf(Node{
		Type:    "heading",
		Attrs:   map[string]any{"level": float64(2), "id": `x" onmouseover="evil()`},
		Content: []Node{{Type: "text", Text: "t"}},
	})
	out := testRenderer().Render(doc, ModePage)
	if strings.Contains(out, `onmouseover="evil()"`) {
		t.Fatalf("heading id broke out of its attribute: %q", out)
	}
	if !strings.Contains(out, `id="x&#34; onmouseover=&#34;evil()"`) {
		t.Errorf("expected escaped id attribute, got %q", out)
	}
}

func TestRenderTableFirstRowIsAlwaysHeader(t *testing.T) {
	cell := func(typ, text string) Node {
		return Node{Type: typ, Content: []Node{paragraph(text)}}
	}
	row := func(cells ...Node) Node {
		return Node{Type: "tableRow", Content: cells}
	}
	// The first row uses plain cells and a body row uses tableHeader: row position must win over declared cell type.
	doc := docOf(Node{Type: "table", Content: []Node{
		row(cell("tableCell", "a"), cell("tableCell", "b")),
		row(cell("tableHeader", "c"), cell("tableHeader", "d")),
		row(cell("tableCell", "e"), cell("tableCell", "f")),
	}})

	out := testRenderer().Render(doc, ModePage)
	if got := strings.Count(out, "<th class="); got != 2 {
		t.Errorf("expected 2 header cells, got %d in %q", got, out)
	}
	if got := strings.Count(out, "<td class="); got != 4 {
		t.Errorf("expected 4 body cells, got %d in %q", got, out)
	}
	if strings.Count(out, "<thead>") != 1 || strings.Count(out, "<tbody>") != 1 {
		t.Errorf("expected one thead and one tbody, got %q", out)
	}
	if !strings.Contains(out, `class="doc-row-even"`) || !strings.Contains(out, `class="doc-row-odd"`) {
		t.Errorf("expected striped body rows, got %q", out)
	}
}

func TestRenderOrderedListStart(t *testing.T) {
	r := testRenderer()
	list := func(attrs map[string]any) *Document {
		return docOf(Node{Type: "orderedList", Attrs: attrs, Content: []Node{
			{Type: "listItem", Content: []Node{paragraph("one")}},
		}})
	}

	if out := r.Render(list(map[string]any{"start": float64(1)}), ModePage); strings.Contains(out, "start=") {
		t.Errorf("start 1 must not be emitted, got %q", out)
	}
	if out := r.Render(list(nil), ModePage); strings.Contains(out, "start=") {
		t.Errorf("absent start must not be emitted, got %q", out)
	}
	out := r.Render(list(map[string]any{"start": float64(5)}), ModePage)
	if !strings.Contains(out, `start="5"`) {
		t.Errorf("expected start=\"5\", got %q", out)
	}
	if !strings.Contains(out, `<li class="doc-item"><p class="doc-p">one</p></li>`) {
		t.Errorf("expected list item wrapping paragraph, got %q", out)
	}
}

func TestRenderImageRules(t *testing.T) {
	r := testRenderer()
	img := func(attrs map[string]any) *Document {
		return docOf(Node{Type: "image", Attrs: attrs})
	}
	empty := `<div class="doc-body"></div>`

	tests := []struct {
		name  string
		attrs map[string]any
	}{
		{"missing storage_key", map[string]any{"id": float64(1), "alt": "x"}},
		{"storage_key wrong type", map[string]any{"id": float64(1), "storage_key": float64(9)}},
		{"missing id", map[string]any{"storage_key": "covers/a.jpg"}},
		{"no attrs at all", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := r.Render(img(tt.attrs), ModePage); out != empty {
				t.Errorf("expected image to be dropped, got %q", out)
			}
		})
	}

	// No prefix anywhere (neither node attr nor configured base) also drops the image.
	bare := NewRenderer("")
	if out := bare.Render(img(map[string]any{"id": "k1", "storage_key": "covers/a.jpg"}), ModePage); out != empty {
		t.Errorf("expected image without any prefix to be dropped, got %q", out)
	}
}

func TestRenderImageURLAndCaption(t *testing.T) {
	r := testRenderer()
	doc := docOf(Node{Type: "image", Attrs: map[string]any{
		"id":          float64(7),
		"storage_key": "covers/a b.jpg",
		"alt":         `an "alt"`,
		"caption":     "shore & sky",
		"width":       float64(800),
		"height":      float64(600),
	}})

	out := r.Render(doc, ModePage)
	if !strings.Contains(out, `src="https://img.example.com/covers/a%20b.jpg?width=1600&amp;quality=80"`) {
		t.Errorf("unexpected image src, got %q", out)
	}
	if !strings.Contains(out, `alt="an &#34;alt&#34;"`) {
		t.Errorf("expected escaped alt, got %q", out)
	}
	if !strings.Contains(out, `width="800"`) || !strings.Contains(out, `height="600"`) {
		t.Errorf("expected width/height attributes, got %q", out)
	}
	if !strings.Contains(out, `<figcaption class="doc-caption">shore &amp; sky</figcaption>`) {
		t.Errorf("expected escaped caption, got %q", out)
	}

	// A node-level prefix overrides the configured base.
	withPrefix := docOf(Node{Type: "image", Attrs: map[string]any{
		"id":          "k9",
		"storage_key": "p/x.png",
		"prefix":      "https://cdn.example.com/u/42",
	}})
	out = r.Render(withPrefix, ModePage)
	if !strings.Contains(out, `src="https://cdn.example.com/u/42/p/x.png?width=1600&amp;quality=80"`) {
		t.Errorf("expected node prefix to win, got %q", out)
	}

	// Without a caption the figcaption element is omitted entirely.
	noCaption := docOf(Node{Type: "image", Attrs: map[string]any{
		"id": float64(1), "storage_key": "covers/a.jpg",
	}})
	if out := r.Render(noCaption, ModePage); strings.Contains(out, "figcaption") {
		t.Errorf("expected no figcaption, got %q", out)
	}
}

func TestRenderCodeBlock(t *testing.T) {
	r := testRenderer()
	doc := docOf(Node{
		Type:    "codeBlock",
		Attrs:   map[string]any{"language": ` go" onclick="evil `},
		Content: []Node{{Type: "text", Text: `fmt.Println("<hi>")`}},
	})

	out := r.Render(doc, ModePage)
	if !strings.Contains(out, `<code class="language-go&#34; onclick=&#34;evil">`) {
		t.Errorf("expected trimmed, escaped language class, got %q", out)
	}
	if !strings.Contains(out, `fmt.Println(&#34;&lt;hi&gt;&#34;)`) {
		t.Errorf("expected escaped code body, got %q", out)
	}

	// Missing or blank language emits no class; an empty code block still renders the skeleton.
	plain := docOf(Node{Type: "customCodeBlock", Attrs: map[string]any{"language": "  "}})
	if out := r.Render(plain, ModePage); !strings.Contains(out, `<pre class="doc-pre"><code></code></pre>`) {
		t.Errorf("expected bare code block, got %q", out)
	}
}

func TestRenderMarksNestInReversedAuthoringOrder(t *testing.T) {
	doc := docOf(Node{Type: "paragraph", Content: []Node{{
		Type: "text",
		Text: "x",
		Marks: []Mark{
			{Type: "bold"},
			{Type: "link", Attrs: map[string]any{"href": "https://example.com", "target": "_blank", "rel": "noopener"}},
		},
	}}})

	out := testRenderer().Render(doc, ModePage)
	want := `<strong><a class="doc-link" href="https://example.com" target="_blank" rel="noopener">x</a></strong>`
	if !strings.Contains(out, want) {
		t.Fatalf("expected first-authored mark outermost:\nwant fragment %q\ngot %q", want, out)
	}
}

func TestRenderAllMarkKinds(t *testing.T) {
	doc := docOf(Node{Type: "paragraph", Content: []Node{{
		Type: "text",
		Text: "x",
		Marks: []Mark{
			{Type: "bold"}, {Type: "italic"}, {Type: "strike"}, {Type: "code"},
			{Type: "highlight"}, {Type: "superscript"}, {Type: "sparkle"},
		},
	}}})

	out := testRenderer().Render(doc, ModeFeed)
	for _, tag := range []string{"<strong>", "<em>", "<s>", "<code", "<mark", "<sup>"} {
		if !strings.Contains(out, tag) {
			t.Errorf("expected %s in output, got %q", tag, out)
		}
	}
	// An unknown mark kind is a no-op: text kept as-is, no extra tags.
	if !strings.Contains(out, ">x<") {
		t.Errorf("expected text to survive unknown mark, got %q", out)
	}
}

func TestRenderLinkHrefPolicy(t *testing.T) {
	r := testRenderer()
	link := func(href any) *Document {
		attrs := map[string]any{}
		if href != nil {
			attrs["href"] = href
		}
		return docOf(Node{Type: "paragraph", Content: []Node{{
			Type: "text", Text: "x", Marks: []Mark{{Type: "link", Attrs: attrs}},
		}}})
	}

	tests := []struct {
		name string
		href any
		want string
	}{
		{"javascript scheme rejected", "javascript:alert(1)", `href="#"`},
		{"uppercase scheme rejected", "JavaScript:alert(1)", `href="#"`},
		{"data scheme rejected", "data:text/html,<script>", `href="#"`},
		{"missing href falls back", nil, `href="#"`},
		{"https passes", "https://example.com/a?b=1&c=2", `href="https://example.com/a?b=1&amp;c=2"`},
		{"relative passes", "/articles/one", `href="/articles/one"`},
		{"mailto passes", "mailto:hi@example.com", `href="mailto:hi@example.com"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Render(link(tt.href), ModePage)
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, out)
			}
			if strings.Contains(out, "javascript:") {
				t.Errorf("script URL leaked: %q", out)
			}
		})
	}
}

func TestRenderEmbedEmitsTrustedMarkupVerbatim(t *testing.T) {
	code := `<iframe src="https://maps.example.com/embed?q=1&z=2"></iframe>`
	doc := docOf(Node{Type: "embed", Attrs: map[string]any{"code": code}})

	for _, mode := range []Mode{ModePage, ModeFeed} {
		out := testRenderer().Render(doc, mode)
		if !strings.Contains(out, code) {
			t.Errorf("mode %s: embed code must pass through unescaped, got %q", mode, out)
		}
	}
}

func TestRenderUnknownNodeKinds(t *testing.T) {
	r := testRenderer()

	withChildren := docOf(Node{Type: "callout", Content: []Node{paragraph("inside")}})
	out := r.Render(withChildren, ModePage)
	if !strings.Contains(out, `<p class="doc-p">inside</p>`) {
		t.Errorf("expected children of unknown node to render, got %q", out)
	}
	if strings.Contains(out, "callout") {
		t.Errorf("unknown node type must not leak into markup: %q", out)
	}

	leaf := docOf(Node{Type: "mystery"})
	if out := r.Render(leaf, ModePage); out != `<div class="doc-body"></div>` {
		t.Errorf("expected unknown leaf to render empty, got %q", out)
	}
}

func TestRenderHardBreakAndRule(t *testing.T) {
	doc := docOf(
		Node{Type: "paragraph", Content: []Node{
			{Type: "text", Text: "a"}, {Type: "hardBreak"}, {Type: "text", Text: "b"},
		}},
		Node{Type: "horizontalRule"},
	)
	out := testRenderer().Render(doc, ModePage)
	if !strings.Contains(out, "a<br/>b") {
		t.Errorf("expected hard break between runs, got %q", out)
	}
	if !strings.Contains(out, `<hr class="doc-rule"/>`) {
		t.Errorf("expected horizontal rule, got %q", out)
	}
}

func TestRenderTruncatesPathologicalDepth(t *testing.T) {
	inner := paragraph("deep")
	for i := 0; i < maxDepth+50; i++ {
		inner = Node{Type: "blockquote", Content: []Node{inner}}
	}
	out := testRenderer().Render(docOf(inner), ModePage)
	if strings.Contains(out, "deep") {
		t.Fatalf("expected content past depth bound to be truncated")
	}

	shallow := paragraph("near")
	for i := 0; i < 10; i++ {
		shallow = Node{Type: "blockquote", Content: []Node{shallow}}
	}
	if out := testRenderer().Render(docOf(shallow), ModePage); !strings.Contains(out, "near") {
		t.Fatalf("shallow nesting must render, got %q", out)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	doc := fullDocument()
	r := testRenderer()
	first := r.Render(doc, ModePage)
	second := r.Render(doc, ModePage)
	if first != second {
		t.Fatalf("two renders of the same document differ:\n%q\n%q", first, second)
	}
}

// fullDocument covers every node kind; used by the isomorphism and idempotence tests.
func fullDocument() *Document {
	cell := func(text string) Node {
		return Node{Type: "tableCell", Content: []Node{paragraph(text)}}
	}
	return docOf(
		Node{Type: "heading", Attrs: map[string]any{"level": float64(1), "id": "intro"}, Content: []Node{{Type: "text", Text: "Title & <More>"}}},
		Node{Type: "paragraph", Content: []Node{
			{Type: "text", Text: "plain "},
			{Type: "text", Text: "bold link", Marks: []Mark{{Type: "bold"}, {Type: "link", Attrs: map[string]any{"href": "https://example.com"}}}},
			{Type: "hardBreak"},
			{Type: "text", Text: `quotes " and '`, Marks: []Mark{{Type: "highlight"}}},
		}},
		Node{Type: "blockquote", Content: []Node{paragraph("quoted")}},
		Node{Type: "codeBlock", Attrs: map[string]any{"language": "go"}, Content: []Node{{Type: "text", Text: "x := 1"}}},
		Node{Type: "horizontalRule"},
		Node{Type: "image", Attrs: map[string]any{"id": float64(3), "storage_key": "a.jpg", "alt": "pic", "caption": "cap"}},
		Node{Type: "table", Content: []Node{
			{Type: "tableRow", Content: []Node{cell("h1"), cell("h2")}},
			{Type: "tableRow", Content: []Node{cell("b1"), cell("b2")}},
			{Type: "tableRow", Content: []Node{cell("c1"), cell("c2")}},
		}},
		Node{Type: "bulletList", Content: []Node{
			{Type: "listItem", Content: []Node{paragraph("first")}},
			{Type: "listItem", Content: []Node{paragraph("second")}},
		}},
		Node{Type: "orderedList", Attrs: map[string]any{"start": float64(4)}, Content: []Node{
			{Type: "listItem", Content: []Node{paragraph("fourth")}},
		}},
		Node{Type: "embed", Attrs: map[string]any{"code": `<iframe src="https://v.example.com/1"></iframe>`}},
	)
}

// stripDecorations removes every class and style attribute and re-serializes,
// so the two modes' structure can be compared byte for byte.
func stripDecorations(t *testing.T, fragment string) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		sel.RemoveAttr("class")
		sel.RemoveAttr("style")
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		t.Fatalf("serialize fragment: %v", err)
	}
	return out
}

func TestPageAndFeedOutputsAreStructurallyIsomorphic(t *testing.T) {
	doc := fullDocument()
	r := testRenderer()

	page := stripDecorations(t, r.Render(doc, ModePage))
	feed := stripDecorations(t, r.Render(doc, ModeFeed))
	if page != feed {
		t.Fatalf("page and feed outputs diverge structurally:\npage: %s\nfeed: %s", page, feed)
	}
}
