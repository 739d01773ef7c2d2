package richdoc

import (
	"html"
	"net/url"
	"strings"
)

// escape 转义 HTML 中有意义的 5 个字符(& < > " ')。
// 所有作者可控的文本与属性值在进入输出前都必须经过它,embed 节点是唯一例外。
func escape(s string) string {
	return html.EscapeString(s)
}

// applyMarks 按倒序遍历 marks,由内向外逐层包裹已转义文本,
// 因此排在最前面的 mark 最终位于最外层。未知 mark 原样透传。
func applyMarks(dec decorator, escaped string, marks []Mark) string {
	out := escaped
	for i := len(marks) - 1; i >= 0; i-- {
		out = applyMark(dec, out, marks[i])
	}
	return out
}

func applyMark(dec decorator, inner string, m Mark) string {
	switch m.Type {
	case "bold":
		return wrap(dec, "strong", "strong", "", inner)
	case "italic":
		return wrap(dec, "em", "em", "", inner)
	case "strike":
		return wrap(dec, "s", "s", "", inner)
	case "code":
		return wrap(dec, "code", "code", "", inner)
	case "highlight":
		return wrap(dec, "mark", "mark", "", inner)
	case "superscript":
		return wrap(dec, "sup", "sup", "", inner)
	case "link":
		return applyLink(dec, inner, m)
	default:
		return inner
	}
}

func applyLink(dec decorator, inner string, m Mark) string {
	extra := ` href="` + escape(safeHref(attrString(m.Attrs, "href"))) + `"`
	if target := attrString(m.Attrs, "target"); target != "" {
		extra += ` target="` + escape(target) + `"`
	}
	if rel := attrString(m.Attrs, "rel"); rel != "" {
		extra += ` rel="` + escape(rel) + `"`
	}
	return wrap(dec, "a", "a", extra, inner)
}

// safeHref 只放行 http、https、mailto 与相对路径,
// 其余协议(javascript:、data: 等)一律退回占位的 "#"。
func safeHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return "#"
	}
	u, err := url.Parse(href)
	if err != nil {
		return "#"
	}
	switch u.Scheme {
	case "", "http", "https", "mailto":
		return href
	default:
		return "#"
	}
}
