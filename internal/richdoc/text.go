package richdoc

import "strings"

// ExtractText 忽略全部标记与块结构,抽取文档树中的纯文本;
// hardBreak 记为换行。用于构造摘要等后备文本,对任何输入都不会失败。
func ExtractText(nodes []Node) string {
	var b strings.Builder
	extractText(&b, nodes, 0)
	return b.String()
}

func extractText(b *strings.Builder, nodes []Node, depth int) {
	if depth > maxDepth {
		return
	}
	for i := range nodes {
		n := &nodes[i]
		switch n.Type {
		case "text":
			b.WriteString(n.Text)
		case "hardBreak":
			b.WriteString("\n")
		}
		if len(n.Content) > 0 {
			extractText(b, n.Content, depth+1)
		}
	}
}
