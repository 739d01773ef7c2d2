package richdoc

import (
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Mode 选择输出的装饰方式。
type Mode string

const (
	// ModePage 输出带稳定 class 的页面 HTML,样式由外部样式表提供。
	ModePage Mode = "page"
	// ModeFeed 输出内联样式的 HTML,订阅阅读器无法加载外部样式表。
	ModeFeed Mode = "feed"
)

// PlaceholderHTML 是文档缺失或损坏时的固定占位输出,两种模式一致。
const PlaceholderHTML = "<p>No content.</p>"

// maxDepth 限制递归深度。文档深度由上游编辑器的作者控制,
// 超出上限的子树整体截断为空,绝不让一篇畸形文档拖垮请求处理。
const maxDepth = 100

// imageQuery 是图片 CDN 的固定变换参数,两种模式共用同一约定。
const imageQuery = "width=1600&quality=80"

// Renderer 将 Document 渲染成 HTML。构造后不可变,可被任意多个请求并发使用。
type Renderer struct {
	imageBase string
}

// NewRenderer 创建渲染器。imageBase 是图片存储的外部前缀,
// 节点自带 prefix 属性时以节点为准。
func NewRenderer(imageBase string) *Renderer {
	return &Renderer{imageBase: imageBase}
}

// Render 渲染整篇文档。文档为 nil 或没有 content 数组时返回固定占位,
// 渲染路径上永不返回错误,单个坏节点不应毁掉整页或整条订阅。
func (r *Renderer) Render(doc *Document, mode Mode) string {
	if doc == nil || doc.Content == nil {
		return PlaceholderHTML
	}
	dec := decoratorFor(mode)
	return wrap(dec, "doc", "div", "", r.renderChildren(dec, doc.Content, 0))
}

// RenderRaw 解码并渲染原始 JSON,解码失败同样退化为占位输出。
func (r *Renderer) RenderRaw(raw []byte, mode Mode) string {
	doc, err := Decode(raw)
	if err != nil {
		return PlaceholderHTML
	}
	return r.Render(doc, mode)
}

// renderChildren 依序渲染并连接子节点,深度越界时整体截断。
func (r *Renderer) renderChildren(dec decorator, nodes []Node, depth int) string {
	if len(nodes) == 0 || depth > maxDepth {
		return ""
	}
	var b strings.Builder
	for i := range nodes {
		b.WriteString(r.renderNode(dec, &nodes[i], depth))
	}
	return b.String()
}

// renderNode 把节点的声明类型映射到渲染规则。未知类型透传子节点,绝不报错。
func (r *Renderer) renderNode(dec decorator, n *Node, depth int) string {
	switch n.Type {
	case "paragraph":
		return wrap(dec, "p", "p", "", r.renderChildren(dec, n.Content, depth+1))
	case "heading":
		return r.renderHeading(dec, n, depth)
	case "blockquote":
		// 引用内允许任意块级节点,走完整分派递归。
		return wrap(dec, "blockquote", "blockquote", "", r.renderChildren(dec, n.Content, depth+1))
	case "codeBlock", "customCodeBlock":
		return renderCodeBlock(dec, n)
	case "horizontalRule":
		return void(dec, "hr", "hr", "")
	case "image":
		return r.renderImage(dec, n)
	case "table":
		return r.renderTable(dec, n, depth)
	case "bulletList":
		return wrap(dec, "ul", "ul", "", r.renderListItems(dec, n.Content, depth))
	case "orderedList":
		return r.renderOrderedList(dec, n, depth)
	case "embed":
		// 信任边界:embed 的 code 由内容作者以发布者身份提供,原样输出。
		// 绝不可把这条豁免扩大到其他节点,更不可让公众输入流入此处。
		return wrap(dec, "embed", "div", "", attrString(n.Attrs, "code"))
	case "text":
		return applyMarks(dec, escape(n.Text), n.Marks)
	case "hardBreak":
		return void(dec, "br", "br", "")
	default:
		if n.Content != nil {
			return r.renderChildren(dec, n.Content, depth+1)
		}
		return ""
	}
}

// renderHeading 的层级规则:缺失或非正数取默认 2,四舍五入后超过 6 则按 6。
func (r *Renderer) renderHeading(dec decorator, n *Node, depth int) string {
	level := 2
	if v, ok := attrNumber(n.Attrs, "level"); ok {
		if rounded := int(math.Round(v)); rounded >= 1 {
			level = rounded
		}
		if level > 6 {
			level = 6
		}
	}

	extra := ""
	// id 由上游编辑器生成,仍按不可信输入转义。
	if id := attrString(n.Attrs, "id"); id != "" {
		extra = ` id="` + escape(id) + `"`
	}

	tag := "h" + strconv.Itoa(level)
	return wrap(dec, tag, tag, extra, r.renderChildren(dec, n.Content, depth+1))
}

// renderCodeBlock 按"单个 text 子节点"取第一个子节点的原始文本,
// 不渲染内联富文本。language 属性是作者可控内容,同样转义。
func renderCodeBlock(dec decorator, n *Node) string {
	var code string
	if len(n.Content) > 0 {
		code = n.Content[0].Text
	}

	inner := "<code>"
	if lang := strings.TrimSpace(attrString(n.Attrs, "language")); lang != "" {
		inner = `<code class="language-` + escape(lang) + `">`
	}
	return wrap(dec, "pre", "pre", "", inner+escape(code)+"</code>")
}

// renderImage 仅在 storage_key、id 与可解析的前缀齐备时渲染,否则静默丢弃。
func (r *Renderer) renderImage(dec decorator, n *Node) string {
	key := attrString(n.Attrs, "storage_key")
	if key == "" || !hasImageID(n.Attrs) {
		return ""
	}
	src := r.imageURL(key, attrString(n.Attrs, "prefix"))
	if src == "" {
		return ""
	}

	extra := ` src="` + escape(src) + `" alt="` + escape(attrString(n.Attrs, "alt")) + `"`
	if w, ok := attrNumber(n.Attrs, "width"); ok && w > 0 {
		extra += ` width="` + strconv.Itoa(int(w)) + `"`
	}
	if h, ok := attrNumber(n.Attrs, "height"); ok && h > 0 {
		extra += ` height="` + strconv.Itoa(int(h)) + `"`
	}

	inner := void(dec, "img", "img", extra)
	if caption := attrString(n.Attrs, "caption"); caption != "" {
		inner += wrap(dec, "figcaption", "figcaption", "", escape(caption))
	}
	return wrap(dec, "figure", "figure", "", inner)
}

// imageURL 组合前缀、存储键与固定变换参数。前缀无法解析时返回空串,图片整体丢弃。
func (r *Renderer) imageURL(key, prefix string) string {
	base := prefix
	if base == "" {
		base = r.imageBase
	}
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u.Path = path.Join(u.Path, key)
	u.RawQuery = imageQuery
	return u.String()
}

// renderTable 恒把第一行当表头,忽略任何显式表头标记;
// 其余行按从零计数的行号交替条纹。空表不产出任何标记。
func (r *Renderer) renderTable(dec decorator, n *Node, depth int) string {
	if len(n.Content) == 0 {
		return ""
	}

	head := wrap(dec, "thead", "thead", "", r.renderRow(dec, &n.Content[0], true, "tr", depth+1))
	var body strings.Builder
	for i := 1; i < len(n.Content); i++ {
		key := "tr.even"
		if (i-1)%2 == 1 {
			key = "tr.odd"
		}
		body.WriteString(r.renderRow(dec, &n.Content[i], false, key, depth+1))
	}
	return wrap(dec, "table", "table", "", head+wrap(dec, "tbody", "tbody", "", body.String()))
}

// renderRow 按位置而非声明类型决定单元格标签:表头行一律 th,数据行一律 td。
func (r *Renderer) renderRow(dec decorator, row *Node, header bool, rowKey string, depth int) string {
	cellTag := "td"
	if header {
		cellTag = "th"
	}
	var b strings.Builder
	for i := range row.Content {
		b.WriteString(wrap(dec, cellTag, cellTag, "", r.renderChildren(dec, row.Content[i].Content, depth+2)))
	}
	return wrap(dec, rowKey, "tr", "", b.String())
}

// renderListItems 把每个子节点渲染成一个列表项:
// listItem 取其子内容为项体,其他节点整体作为项体,宽容处理编辑器的产出差异。
func (r *Renderer) renderListItems(dec decorator, nodes []Node, depth int) string {
	if depth > maxDepth {
		return ""
	}
	var b strings.Builder
	for i := range nodes {
		item := &nodes[i]
		var body string
		if item.Type == "listItem" {
			body = r.renderChildren(dec, item.Content, depth+2)
		} else {
			body = r.renderNode(dec, item, depth+1)
		}
		b.WriteString(wrap(dec, "li", "li", "", body))
	}
	return b.String()
}

func (r *Renderer) renderOrderedList(dec decorator, n *Node, depth int) string {
	extra := ""
	// start 只在数值大于 1 时出现在输出里。
	if v, ok := attrNumber(n.Attrs, "start"); ok {
		if start := int(v); start > 1 {
			extra = ` start="` + strconv.Itoa(start) + `"`
		}
	}
	return wrap(dec, "ol", "ol", extra, r.renderListItems(dec, n.Content, depth))
}

// attrString 取属性的字符串值,缺失或类型不符一律按空串处理。
func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}

// attrNumber 取属性的数值。JSON 解码产出 float64,手工构造的文档可能带 int。
func attrNumber(attrs map[string]any, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// hasImageID 判断 image 节点的 id 属性是否存在(字符串或数字均可)。
func hasImageID(attrs map[string]any) bool {
	if attrs == nil {
		return false
	}
	switch v := attrs["id"].(type) {
	case string:
		return v != ""
	case float64, int:
		return true
	}
	return false
}
