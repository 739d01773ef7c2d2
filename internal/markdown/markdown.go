// Package markdown 封装两条 Markdown 渲染管线:作者内容走带代码高亮的
// 完整管线,访客评论走净化过的受限管线。
package markdown

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// Renderer 持有预构建的 goldmark 实例;构建开销大,进程内复用。
type Renderer struct {
	author    goldmark.Markdown
	untrusted goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// New 构建渲染器。作者管线信任原始 HTML,访客管线的输出
// 还要过一遍 bluemonday 的 UGC 策略。
func New() *Renderer {
	author := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	untrusted := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &Renderer{
		author:    author,
		untrusted: untrusted,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Render 渲染作者撰写的 Markdown。
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.author.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderUntrusted 渲染访客提交的 Markdown,输出一律经过净化。
func (r *Renderer) RenderUntrusted(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.untrusted.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}
