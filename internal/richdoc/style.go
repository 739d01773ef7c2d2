package richdoc

// styleRule 给出同一个结构键在两种模式下的装饰:页面模式取 class,
// 订阅模式取内联 CSS。两种输出共用这一张表,结构不可能分叉。
type styleRule struct {
	class string
	css   string
}

// styleTable 以结构键(多数情况下就是标签名)索引装饰规则。
// 表中没有的键不加任何装饰,纯语义标签(strong、em 等)即属此类。
var styleTable = map[string]styleRule{
	"doc": {
		class: "doc-body",
		css:   "font-family:Georgia,'Times New Roman',serif;font-size:16px;line-height:1.7;color:#24292f",
	},
	"p":          {class: "doc-p", css: "margin:0 0 1.25em"},
	"h1":         {class: "doc-heading", css: "font-size:1.9em;line-height:1.3;margin:1.2em 0 0.6em"},
	"h2":         {class: "doc-heading", css: "font-size:1.5em;line-height:1.3;margin:1.2em 0 0.6em"},
	"h3":         {class: "doc-heading", css: "font-size:1.25em;line-height:1.3;margin:1.2em 0 0.6em"},
	"h4":         {class: "doc-heading", css: "font-size:1.1em;line-height:1.3;margin:1.2em 0 0.6em"},
	"h5":         {class: "doc-heading", css: "font-size:1em;line-height:1.3;margin:1.2em 0 0.6em"},
	"h6":         {class: "doc-heading", css: "font-size:0.9em;line-height:1.3;margin:1.2em 0 0.6em"},
	"blockquote": {class: "doc-quote", css: "border-left:3px solid #d0d7de;margin:0 0 1.25em;padding:0 0 0 1em;color:#57606a"},
	"pre":        {class: "doc-pre", css: "background:#f6f8fa;border-radius:6px;padding:16px;overflow-x:auto;font-size:85%;line-height:1.45"},
	"code":       {class: "doc-code", css: "font-family:ui-monospace,SFMono-Regular,monospace;background:#f6f8fa;padding:0.2em 0.4em;border-radius:6px;font-size:85%"},
	"hr":         {class: "doc-rule", css: "border:0;border-top:1px solid #d0d7de;margin:24px 0"},
	"figure":     {class: "doc-figure", css: "margin:0 0 1.25em"},
	"img":        {class: "doc-image", css: "max-width:100%;height:auto;border-radius:6px"},
	"figcaption": {class: "doc-caption", css: "font-size:0.85em;color:#57606a;margin-top:0.5em;text-align:center"},
	"table":      {class: "doc-table", css: "border-collapse:collapse;width:100%;margin:0 0 1.25em"},
	"th":         {class: "doc-th", css: "border:1px solid #d0d7de;padding:6px 13px;text-align:left;font-weight:600;background:#f6f8fa"},
	"td":         {class: "doc-td", css: "border:1px solid #d0d7de;padding:6px 13px"},
	"tr.even":    {class: "doc-row-even", css: ""},
	"tr.odd":     {class: "doc-row-odd", css: "background:#f6f8fa"},
	"ul":         {class: "doc-list", css: "margin:0 0 1.25em;padding-left:2em"},
	"ol":         {class: "doc-list-ordered", css: "margin:0 0 1.25em;padding-left:2em"},
	"li":         {class: "doc-item", css: "margin:0.25em 0"},
	"a":          {class: "doc-link", css: "color:#0969da;text-decoration:underline"},
	"mark":       {class: "doc-mark", css: "background:#fff8c5;padding:0 2px"},
	"embed":      {class: "doc-embed", css: "margin:0 0 1.25em"},
}

// decorator 按结构键为标签注入装饰属性,由渲染模式决定具体形态。
type decorator interface {
	// attr 返回形如 ` class="…"` 或 ` style="…"` 的属性片段,无装饰时返回空串。
	attr(key string) string
}

type classDecorator struct{}

func (classDecorator) attr(key string) string {
	rule, ok := styleTable[key]
	if !ok || rule.class == "" {
		return ""
	}
	return ` class="` + rule.class + `"`
}

type inlineDecorator struct{}

func (inlineDecorator) attr(key string) string {
	rule, ok := styleTable[key]
	if !ok || rule.css == "" {
		return ""
	}
	return ` style="` + rule.css + `"`
}

func decoratorFor(mode Mode) decorator {
	if mode == ModeFeed {
		return inlineDecorator{}
	}
	return classDecorator{}
}

// wrap 生成 <tag …>inner</tag>。extra 为已转义的额外属性片段(含前导空格)。
func wrap(dec decorator, key, tag, extra, inner string) string {
	return "<" + tag + dec.attr(key) + extra + ">" + inner + "</" + tag + ">"
}

// void 生成自闭合元素,订阅输出常被按 XML 解析,统一使用 "/>"。
func void(dec decorator, key, tag, extra string) string {
	return "<" + tag + dec.attr(key) + extra + "/>"
}
