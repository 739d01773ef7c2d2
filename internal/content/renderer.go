package content

import (
	"fmt"
	"html/template"
	"strings"

	"inkwell/internal/markdown"
	"inkwell/internal/richdoc"
)

// Renderer 按条目格式分发到对应的渲染管线。
type Renderer struct {
	rich *richdoc.Renderer
	md   *markdown.Renderer
}

// NewRenderer 构建渲染器,imageBase 是结构化文档图片的默认前缀。
func NewRenderer(imageBase string) *Renderer {
	return &Renderer{
		rich: richdoc.NewRenderer(imageBase),
		md:   markdown.New(),
	}
}

// RenderHTML 将 Entry 渲染成页面用的 HTML 字符串。
// 结构化文档坏掉时得到占位段落而不是错误。
func (r *Renderer) RenderHTML(entry Entry) (template.HTML, error) {
	switch entry.Format {
	case FormatRichdoc:
		return template.HTML(r.rich.RenderRaw([]byte(entry.Raw), richdoc.ModePage)), nil
	case FormatMarkdown:
		out, err := r.md.Render(entry.Raw)
		if err != nil {
			return "", err
		}
		return template.HTML(out), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", entry.Format)
	}
}

// RenderFeedHTML 渲染订阅源用的 HTML:结构化文档走内联样式模式,
// Markdown 与页面共用一份输出。
func (r *Renderer) RenderFeedHTML(entry Entry) (string, error) {
	switch entry.Format {
	case FormatRichdoc:
		return r.rich.RenderRaw([]byte(entry.Raw), richdoc.ModeFeed), nil
	case FormatMarkdown:
		return r.md.Render(entry.Raw)
	default:
		return "", fmt.Errorf("unsupported format: %s", entry.Format)
	}
}

// RenderCommentHTML 渲染访客评论,输出经过净化。
func (r *Renderer) RenderCommentHTML(body string) (template.HTML, error) {
	out, err := r.md.RenderUntrusted(body)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// Excerpt 给条目生成一段纯文本摘要:优先手填的描述,
// 否则从正文提取,压缩空白后按字符数截断。
func (r *Renderer) Excerpt(entry Entry, limit int) string {
	base := strings.TrimSpace(entry.Description)
	if base == "" {
		base = r.plainText(entry)
	}
	return summarize(base, limit)
}

func (r *Renderer) plainText(entry Entry) string {
	if entry.Format != FormatRichdoc {
		return entry.Raw
	}
	doc, err := richdoc.Decode([]byte(entry.Raw))
	if err != nil {
		return ""
	}
	return richdoc.ExtractText(doc.Content)
}

func summarize(raw string, limit int) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	collapsed := strings.Join(strings.Fields(trimmed), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return string(runes[:limit]) + "…"
}
